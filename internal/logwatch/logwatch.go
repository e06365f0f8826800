// Package logwatch follows the model server's log file and turns known
// lines into readiness and error signals for the worker.
package logwatch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Action is what a matching log line means for the worker.
type Action int

const (
	ActionInfo Action = iota
	ActionModelLoaded
	ActionModelError
)

func (a Action) String() string {
	switch a {
	case ActionModelLoaded:
		return "model_loaded"
	case ActionModelError:
		return "model_error"
	}
	return "info"
}

// ParseAction maps a configured action name to an Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "model_loaded", "loaded":
		return ActionModelLoaded, nil
	case "model_error", "error":
		return ActionModelError, nil
	case "info", "":
		return ActionInfo, nil
	}
	return ActionInfo, fmt.Errorf("unknown log action %q", name)
}

// Rule fires Action for every line containing Match.
type Rule struct {
	Action Action
	Match  string
}

// DefaultRules recognise text-generation-inference startup output.
func DefaultRules() []Rule {
	return []Rule{
		{Action: ActionModelLoaded, Match: `"message":"Connected","target":"text_generation_router::server"`},
		{Action: ActionInfo, Match: `"message":"Download`},
		{Action: ActionModelError, Match: "Error: WebserverFailed"},
		{Action: ActionModelError, Match: "Error: DownloadError"},
		{Action: ActionModelError, Match: "Error: ShardCannotStart"},
	}
}

// Event is one matched log line.
type Event struct {
	Action Action
	Line   string
	Time   time.Time
}

// State is the readiness view derived from the log so far.
type State struct {
	Loaded   bool
	LoadTime time.Duration
	Error    string
}

// Watcher applies rules to a log file as it grows.
type Watcher struct {
	path    string
	rules   []Rule
	onEvent func(Event)
	started time.Time

	mu    sync.RWMutex
	state State

	offset  int64
	pending []byte
}

// New creates a watcher for path. onEvent may be nil.
func New(path string, rules []Rule, onEvent func(Event)) *Watcher {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Watcher{
		path:    path,
		rules:   rules,
		onEvent: onEvent,
		started: time.Now(),
	}
}

// State returns a snapshot of the readiness state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Ready reports whether the model finished loading without errors.
func (w *Watcher) Ready() bool {
	s := w.State()
	return s.Loaded && s.Error == ""
}

// Scan applies the rules to every complete line read from r.
func (w *Watcher) Scan(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		w.handleLine(sc.Text())
	}
	return sc.Err()
}

func (w *Watcher) handleLine(line string) {
	for _, rule := range w.rules {
		if rule.Match == "" || !strings.Contains(line, rule.Match) {
			continue
		}
		ev := Event{Action: rule.Action, Line: line, Time: time.Now()}
		w.apply(ev)
		if w.onEvent != nil {
			w.onEvent(ev)
		}
		return
	}
}

func (w *Watcher) apply(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch ev.Action {
	case ActionModelLoaded:
		if !w.state.Loaded {
			w.state.Loaded = true
			w.state.LoadTime = ev.Time.Sub(w.started)
			slog.Info("model.loaded", "load_time", w.state.LoadTime)
		}
	case ActionModelError:
		w.state.Error = ev.Line
		slog.Error("model.error", "line", ev.Line)
	default:
		slog.Info("model.info", "line", ev.Line)
	}
}

// Run reads what the file already holds and then follows appends until ctx
// is cancelled. The file may not exist yet; its directory must.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := w.readNew(); err != nil {
		slog.Debug("model log not readable yet", "path", w.path, "error", err)
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.offset = 0
				w.pending = nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := w.readNew(); err != nil {
					slog.Warn("failed to read model log", "path", w.path, "error", err)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("model log watcher error", "error", err)
		}
	}
}

// readNew consumes bytes appended since the last read. A trailing partial
// line is kept until its newline arrives.
func (w *Watcher) readNew() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.offset {
		w.offset = 0
		w.pending = nil
	}
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	w.offset += int64(len(data))

	buf := append(w.pending, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		w.pending = buf
		return nil
	}
	w.pending = append([]byte(nil), buf[last+1:]...)
	return w.Scan(bytes.NewReader(buf[:last+1]))
}
