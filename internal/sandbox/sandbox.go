// Package sandbox runs untrusted code strings in isolated back-ends and
// streams their output into an injected sink.
package sandbox

import "context"

// LogSink receives one captured output line per call, in the order the
// running code produced them. A sink is scoped to a single execution; the
// back-ends never write to process-wide output.
type LogSink func(line string)

// Executor runs one code string in isolation. Output goes to sink, errors
// raised by the code come back as the returned error with any lines emitted
// before the failure already delivered. Cancelling ctx hard-stops the run.
type Executor interface {
	Exec(ctx context.Context, code string, sink LogSink) error
}
