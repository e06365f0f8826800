package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/errgroup"

	"github.com/n0madic/go-tgi-worker/internal/payload"
	"github.com/n0madic/go-tgi-worker/internal/types"
)

// SDKDriver drives a running worker through the OpenAI client, the way an
// external caller would.
type SDKDriver struct {
	Version *payload.Version
	client  openai.Client
}

// NewSDKDriver targets the worker at workerURL (scheme://host:port).
func NewSDKDriver(workerURL, apiKey string, v *payload.Version, timeout time.Duration) *SDKDriver {
	if apiKey == "" {
		apiKey = "unused"
	}
	base := strings.TrimRight(workerURL, "/") + "/v1/"
	return &SDKDriver{
		Version: v,
		client: openai.NewClient(
			option.WithBaseURL(base),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
	}
}

// Sample is the outcome of one request.
type Sample struct {
	Latency time.Duration
	Tokens  int
	Err     error
}

// Summary aggregates the samples of a drive.
type Summary struct {
	Requests int
	Failures int
	Elapsed  time.Duration
	Mean     time.Duration
	P50      time.Duration
	Max      time.Duration
	Tokens   int
}

// Drive sends n benchmark requests with at most concurrency in flight.
// Request failures are counted, not returned; the error is for ctx only.
func (d *SDKDriver) Drive(ctx context.Context, n, concurrency int) (Summary, []Sample, error) {
	if n <= 0 {
		return Summary{}, nil, ErrNoRuns
	}
	body, err := d.Version.Benchmark().WireBytes()
	if err != nil {
		return Summary{}, nil, fmt.Errorf("encode benchmark request: %w", err)
	}

	samples := make([]Sample, n)
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		g.Go(func() error {
			s := d.send(gctx, body)
			samples[i] = s
			if s.Err != nil {
				slog.Debug("bench.request.failed", "index", i, "error", s.Err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	elapsed := time.Since(start)
	if err := ctx.Err(); err != nil {
		return Summary{}, samples, err
	}
	return summarize(samples, elapsed), samples, nil
}

func (d *SDKDriver) send(ctx context.Context, body []byte) Sample {
	var out types.ChatCompletionResponse
	start := time.Now()
	err := d.client.Post(ctx, "chat/completions", json.RawMessage(body), &out)
	s := Sample{Latency: time.Since(start), Err: err}
	if out.Usage != nil {
		s.Tokens = out.Usage.CompletionTokens
	}
	return s
}

func summarize(samples []Sample, elapsed time.Duration) Summary {
	sum := Summary{Requests: len(samples), Elapsed: elapsed}
	var latencies []time.Duration
	for _, s := range samples {
		if s.Err != nil {
			sum.Failures++
			continue
		}
		latencies = append(latencies, s.Latency)
		sum.Tokens += s.Tokens
	}
	if len(latencies) == 0 {
		return sum
	}
	slices.Sort(latencies)
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	sum.Mean = total / time.Duration(len(latencies))
	sum.P50 = latencies[len(latencies)/2]
	sum.Max = latencies[len(latencies)-1]
	return sum
}
