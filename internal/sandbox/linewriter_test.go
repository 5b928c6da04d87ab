package sandbox

import (
	"reflect"
	"testing"
)

func TestLineWriterSplitsChunks(t *testing.T) {
	sink, logs := collectSink()
	w := newLineWriter(sink, "")

	w.Write([]byte("hel"))
	w.Write([]byte("lo\nwor"))
	w.Write([]byte("ld\n"))

	if want := []string{"hello", "world"}; !reflect.DeepEqual(*logs, want) {
		t.Errorf("logs = %v, want %v", *logs, want)
	}
}

func TestLineWriterPrefix(t *testing.T) {
	sink, logs := collectSink()
	w := newLineWriter(sink, "Error: ")

	w.Write([]byte("Traceback (most recent call last):\n  boom\n"))

	want := []string{"Error: Traceback (most recent call last):", "Error:   boom"}
	if !reflect.DeepEqual(*logs, want) {
		t.Errorf("logs = %v, want %v", *logs, want)
	}
}

func TestLineWriterFlushDeliversPartialLine(t *testing.T) {
	sink, logs := collectSink()
	w := newLineWriter(sink, "")

	w.Write([]byte("no newline"))
	if len(*logs) != 0 {
		t.Fatalf("partial line delivered early: %v", *logs)
	}
	w.Flush()
	if !reflect.DeepEqual(*logs, []string{"no newline"}) {
		t.Errorf("logs = %v", *logs)
	}

	// Flushing again must not repeat the line.
	w.Flush()
	if len(*logs) != 1 {
		t.Errorf("second flush duplicated output: %v", *logs)
	}
}

func TestLineWriterBlankLines(t *testing.T) {
	sink, logs := collectSink()
	w := newLineWriter(sink, "")

	w.Write([]byte("a\n\nb\n"))

	if want := []string{"a", "", "b"}; !reflect.DeepEqual(*logs, want) {
		t.Errorf("logs = %v, want %v", *logs, want)
	}
}
