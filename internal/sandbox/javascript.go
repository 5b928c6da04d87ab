package sandbox

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"
)

// maxCallStackSize limits VM call stack depth so deeply recursive scripts
// fail with a RangeError instead of exhausting the host stack.
const maxCallStackSize = 2048

// JavaScript executes code on a goja VM. Every call gets a fresh VM, so
// runs share no state and a stopped run leaves nothing behind to clean up.
type JavaScript struct{}

// NewJavaScript creates the JavaScript back-end.
func NewJavaScript() *JavaScript {
	return &JavaScript{}
}

// Exec runs code in the global scope of a new VM. console.log is bound to
// sink for the duration of the run: each call's arguments are joined with a
// single space and delivered as one line. Thrown values propagate as the
// returned error once the run is over; output captured before the throw has
// already reached the sink.
func (j *JavaScript) Exec(ctx context.Context, code string, sink LogSink) error {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	if err := bindConsole(vm, sink); err != nil {
		return err
	}

	// Hard stop: when ctx expires the VM is interrupted mid-opcode, not
	// asked to cooperate.
	watchdog := make(chan struct{})
	defer close(watchdog)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-watchdog:
		}
	}()

	_, err := vm.RunString(code)
	if err == nil {
		vm.ClearInterrupt()
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return errors.New(exceptionText(exception))
	}
	return err
}

func bindConsole(vm *goja.Runtime, sink LogSink) error {
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		sink(strings.Join(parts, " "))
		return goja.Undefined()
	}

	console := vm.NewObject()
	if err := console.Set("log", logFn); err != nil {
		return err
	}
	// error and warn share the capture path; the room UI has one log pane.
	if err := console.Set("error", logFn); err != nil {
		return err
	}
	if err := console.Set("warn", logFn); err != nil {
		return err
	}
	return vm.Set("console", console)
}

// exceptionText extracts the message of a thrown Error object, falling back
// to the string form of whatever non-Error value was thrown.
func exceptionText(ex *goja.Exception) string {
	if obj, ok := ex.Value().(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) && !goja.IsNull(msg) {
			return msg.String()
		}
	}
	return ex.Value().String()
}
