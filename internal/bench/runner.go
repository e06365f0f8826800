// Package bench measures how much workload the backend sustains, by sending
// the active version's benchmark request and timing it.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/n0madic/go-tgi-worker/internal/metrics"
	"github.com/n0madic/go-tgi-worker/internal/payload"
	"github.com/n0madic/go-tgi-worker/internal/upstream"
)

// ErrNoRuns is returned when a runner is asked to send nothing.
var ErrNoRuns = errors.New("benchmark needs at least one run")

// Forwarder sends a wire body to the backend.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (*upstream.Response, error)
}

// Runner sends Runs concurrent benchmark requests.
type Runner struct {
	Version *payload.Version
	Backend Forwarder
	// Monitor receives the measured throughput when set.
	Monitor *metrics.Monitor
	Runs    int
	// Bound overrides the generation bound of the benchmark request.
	Bound float64
}

// Result summarizes one benchmark.
type Result struct {
	Runs       int
	Workload   float64
	Elapsed    time.Duration
	Throughput float64
}

// Run sends the benchmark and returns workload per second. Any non-200 reply
// fails the whole benchmark.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Runs <= 0 {
		return Result{}, ErrNoRuns
	}
	p := r.Version.Benchmark()
	if r.Bound > 0 && r.Bound != payload.BenchmarkMaxTokens {
		var err error
		if p, err = r.Version.BenchmarkSized(r.Bound); err != nil {
			return Result{}, fmt.Errorf("build benchmark request: %w", err)
		}
	}
	body, err := p.WireBytes()
	if err != nil {
		return Result{}, fmt.Errorf("encode benchmark request: %w", err)
	}

	slog.Info("benchmark.start", "version", r.Version.Name(), "runs", r.Runs, "payload", p.String())

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.Runs; i++ {
		g.Go(func() error {
			resp, err := r.Backend.Forward(gctx, body)
			if err != nil {
				return err
			}
			return resp.Err()
		})
	}
	if err := g.Wait(); err != nil {
		if r.Monitor != nil {
			r.Monitor.SetError(err.Error())
		}
		return Result{}, fmt.Errorf("benchmark: %w", err)
	}
	elapsed := time.Since(start)

	res := Result{
		Runs:     r.Runs,
		Workload: p.Workload() * float64(r.Runs),
		Elapsed:  elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = res.Workload / secs
	}
	if r.Monitor != nil {
		r.Monitor.SetMaxThroughput(res.Throughput)
	}
	slog.Info("benchmark.done", "workload", res.Workload, "elapsed", res.Elapsed, "throughput", res.Throughput)
	return res, nil
}
