// Package executor owns the execution of room code: it dispatches a run to
// the right sandbox back-end, enforces the wall-clock timeout, and converts
// every failure mode into a structured result. No error escapes Run.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coderoom/internal/language"
	"coderoom/internal/sandbox"
)

// DefaultTimeout is the wall-clock limit raced against every run.
const DefaultTimeout = 5000 * time.Millisecond

// Result is the outcome of one run, in the shape the execution boundary
// speaks: a success carries the ordered log, an error additionally carries
// a description. A timed-out run is an error whose log ends with the
// synthetic timeout line and whose description is empty.
type Result struct {
	Type  string   `json:"type"` // "success" or "error"
	Logs  []string `json:"logs"`
	Error string   `json:"error,omitempty"`
}

// Options configures a Host.
type Options struct {
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
	// PythonWasmPath locates the CPython WASI build loaded on first use.
	PythonWasmPath string
}

// Host runs code through per-language sandbox back-ends. Each run executes
// in its own goroutine with its own deadline; concurrent runs share nothing
// but the lazily initialized Python interpreter cache.
type Host struct {
	timeout  time.Duration
	backends map[language.Language]sandbox.Executor
}

// New creates a Host with the javascript and python back-ends registered.
func New(opts Options) *Host {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Host{
		timeout: timeout,
		backends: map[language.Language]sandbox.Executor{
			language.JavaScript: sandbox.NewJavaScript(),
			language.Python:     sandbox.NewPython(opts.PythonWasmPath),
		},
	}
}

// Timeout returns the wall-clock limit applied to each run.
func (h *Host) Timeout() time.Duration {
	return h.timeout
}

// Run executes code in the back-end for lang and always returns a Result:
//
//   - an unknown language fails immediately, before any sandbox is touched;
//   - a run that raises keeps the lines logged before the failure;
//   - a run that outlives the deadline is hard-terminated and its partial
//     log gains exactly one trailing timeout line. The sink is sealed at
//     that moment, so a dying sandbox cannot append stray output.
func (h *Host) Run(ctx context.Context, code string, lang language.Language) Result {
	backend, ok := h.backends[lang]
	if !ok {
		return Result{
			Type:  "error",
			Logs:  []string{},
			Error: fmt.Sprintf("unsupported language: %s", lang),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var mu sync.Mutex
	logs := []string{}
	sealed := false
	sink := func(line string) {
		mu.Lock()
		if !sealed {
			logs = append(logs, line)
		}
		mu.Unlock()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			// The host is the one place that converts raised errors into
			// results; a panicking back-end must not cross the boundary.
			if r := recover(); r != nil {
				done <- fmt.Errorf("sandbox panic: %v", r)
			}
		}()
		done <- backend.Exec(runCtx, code, sink)
	}()

	select {
	case err := <-done:
		if runCtx.Err() == context.DeadlineExceeded {
			return h.timeoutResult(&mu, &sealed, &logs)
		}
		mu.Lock()
		sealed = true
		out := append([]string(nil), logs...)
		mu.Unlock()
		if runCtx.Err() == context.Canceled {
			return Result{Type: "error", Logs: out, Error: "execution cancelled"}
		}
		if err != nil {
			return Result{Type: "error", Logs: out, Error: err.Error()}
		}
		return Result{Type: "success", Logs: out}

	case <-runCtx.Done():
		// Deadline fired while the back-end was still running. Cancellation
		// has already been delivered (goja interrupt, wazero module close);
		// do not wait for the corpse, just seal and report.
		if runCtx.Err() == context.DeadlineExceeded {
			return h.timeoutResult(&mu, &sealed, &logs)
		}
		mu.Lock()
		sealed = true
		out := append([]string(nil), logs...)
		mu.Unlock()
		return Result{Type: "error", Logs: out, Error: "execution cancelled"}
	}
}

func (h *Host) timeoutResult(mu *sync.Mutex, sealed *bool, logs *[]string) Result {
	mu.Lock()
	*sealed = true
	out := append([]string(nil), *logs...)
	mu.Unlock()
	out = append(out, fmt.Sprintf("Execution timed out (%s limit)", h.timeout))
	return Result{Type: "error", Logs: out}
}
