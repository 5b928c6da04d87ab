package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func TestPythonMissingInterpreterIsInitializationFailure(t *testing.T) {
	py := NewPython(filepath.Join(t.TempDir(), "python.wasm"))
	sink, logs := collectSink()

	err := py.Exec(context.Background(), `print("hi")`, sink)
	if err == nil {
		t.Fatal("expected initialization failure for missing interpreter asset")
	}
	if !strings.Contains(err.Error(), "initializing python runtime") {
		t.Errorf("error = %v, want initialization context", err)
	}
	if len(*logs) != 0 {
		t.Errorf("no output expected before initialization, got %v", *logs)
	}
}

func TestPythonInitFailureIsNotCached(t *testing.T) {
	py := NewPython(filepath.Join(t.TempDir(), "python.wasm"))
	sink, _ := collectSink()

	if err := py.Exec(context.Background(), `print(1)`, sink); err == nil {
		t.Fatal("first run should fail")
	}
	// A second run must attempt the load again rather than reuse a
	// poisoned state; with the asset still missing it fails the same way.
	err := py.Exec(context.Background(), `print(1)`, sink)
	if err == nil || !strings.Contains(err.Error(), "initializing python runtime") {
		t.Errorf("second run error = %v", err)
	}
}

func TestPythonInvalidModuleFailsCompile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "python.wasm")
	if err := writeFile(path, []byte("not a wasm binary")); err != nil {
		t.Fatal(err)
	}

	py := NewPython(path)
	defer py.Close(context.Background())
	sink, _ := collectSink()

	err := py.Exec(context.Background(), `print(1)`, sink)
	if err == nil || !strings.Contains(err.Error(), "initializing python runtime") {
		t.Errorf("error = %v, want compile failure", err)
	}
}

func TestPythonCloseWithoutInit(t *testing.T) {
	py := NewPython("unused.wasm")
	if err := py.Close(context.Background()); err != nil {
		t.Errorf("close before init: %v", err)
	}
}

// Concurrent first runs must share one in-flight initialization: the
// interpreter asset is loaded once, and every waiter gets that attempt's
// outcome.
func TestPythonConcurrentFirstRunsShareOneInit(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	orig := readInterpreter
	readInterpreter = func(string) ([]byte, error) {
		loads.Add(1)
		<-release // hold the init open so every runner piles onto it
		return nil, errors.New("asset unavailable")
	}
	t.Cleanup(func() { readInterpreter = orig })

	py := NewPython("shared.wasm")

	const runners = 8
	errs := make(chan error, runners)
	for i := 0; i < runners; i++ {
		go func() {
			sink, _ := collectSink()
			errs <- py.Exec(context.Background(), `print(1)`, sink)
		}()
	}

	// Give every runner time to reach the shared init before letting the
	// load finish.
	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < runners; i++ {
		if err := <-errs; err == nil || !strings.Contains(err.Error(), "asset unavailable") {
			t.Errorf("runner error = %v, want the shared load failure", err)
		}
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("interpreter loaded %d times for concurrent first runs, want 1", got)
	}
}
