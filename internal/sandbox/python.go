package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Python executes code on a CPython interpreter compiled to WASI, run
// under wazero. Compiling the interpreter module is expensive, so it
// happens once per process, lazily on the first run; every run then gets
// its own module instance with no shared state.
type Python struct {
	wasmPath string

	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	inflight *pythonInit
}

// pythonInit tracks one in-progress interpreter initialization so that
// concurrent first runs wait on it instead of compiling twice.
type pythonInit struct {
	done chan struct{}
	err  error
}

// readInterpreter loads the interpreter asset; swapped out in tests.
var readInterpreter = os.ReadFile

// NewPython creates the Python back-end. wasmPath points at a CPython WASI
// build; it is not read until the first execution.
func NewPython(wasmPath string) *Python {
	return &Python{wasmPath: wasmPath}
}

// Exec runs code as if by `python -c code`. stdout lines go to sink as-is,
// stderr lines with an "Error: " prefix. A failed interpreter load is
// reported for this run only; the next run attempts the load again.
func (p *Python) Exec(ctx context.Context, code string, sink LogSink) error {
	if err := p.ensureCompiled(ctx); err != nil {
		return fmt.Errorf("initializing python runtime: %w", err)
	}

	stdout := newLineWriter(sink, "")
	stderr := newLineWriter(sink, "Error: ")
	defer func() {
		stdout.Flush()
		stderr.Flush()
	}()

	cfg := wazero.NewModuleConfig().
		WithName(""). // anonymous, so concurrent runs never collide
		WithArgs("python", "-c", code).
		WithStdout(stdout).
		WithStderr(stderr)

	p.mu.Lock()
	rt, compiled := p.runtime, p.compiled
	p.mu.Unlock()

	// Instantiating a WASI command module runs its _start function to
	// completion. The runtime is configured with CloseOnContextDone, so an
	// expired ctx destroys the instance rather than waiting on it.
	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if mod != nil {
		_ = mod.Close(context.WithoutCancel(ctx))
	}
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exit *sys.ExitError
	if errors.As(err, &exit) {
		if exit.ExitCode() == 0 {
			return nil
		}
		// The traceback already went to the sink via stderr.
		stderr.Flush()
		return fmt.Errorf("python exited with status %d", exit.ExitCode())
	}
	return fmt.Errorf("running python module: %w", err)
}

// ensureCompiled loads and compiles the interpreter exactly once. If an
// initialization is already running, the caller waits for its outcome; a
// failure is returned to every waiter but not cached, so a later run may
// retry (the asset might have appeared in the meantime).
func (p *Python) ensureCompiled(ctx context.Context) error {
	p.mu.Lock()
	if p.compiled != nil {
		p.mu.Unlock()
		return nil
	}
	if init := p.inflight; init != nil {
		p.mu.Unlock()
		select {
		case <-init.done:
			return init.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	init := &pythonInit{done: make(chan struct{})}
	p.inflight = init
	p.mu.Unlock()

	// Compile on a background context: the initialization is shared, and
	// one caller's deadline must not abort it for everyone else.
	init.err = p.compile(context.Background())

	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
	close(init.done)
	return init.err
}

func (p *Python) compile(ctx context.Context) error {
	wasm, err := readInterpreter(p.wasmPath)
	if err != nil {
		return fmt.Errorf("reading interpreter %s: %w", p.wasmPath, err)
	}

	rt := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithCloseOnContextDone(true),
	)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("instantiating WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("compiling interpreter: %w", err)
	}

	p.mu.Lock()
	p.runtime = rt
	p.compiled = compiled
	p.mu.Unlock()
	return nil
}

// Close releases the interpreter runtime, if it was ever initialized.
func (p *Python) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runtime == nil {
		return nil
	}
	err := p.runtime.Close(ctx)
	p.runtime = nil
	p.compiled = nil
	return err
}
