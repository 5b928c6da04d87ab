package sandbox

import (
	"bytes"
	"sync"
)

// lineWriter adapts an io.Writer stream to a LogSink, forwarding one sink
// call per completed line with an optional prefix. Interpreter runtimes
// write in arbitrary chunks, so partial lines are buffered until their
// newline arrives.
type lineWriter struct {
	mu     sync.Mutex
	sink   LogSink
	prefix string
	buf    bytes.Buffer
}

func newLineWriter(sink LogSink, prefix string) *lineWriter {
	return &lineWriter{sink: sink, prefix: prefix}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// No newline yet; keep the partial line buffered.
			w.buf.WriteString(line)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush delivers any trailing output that never got a newline. Called once
// after the run finishes.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	w.sink(w.prefix + line)
}
