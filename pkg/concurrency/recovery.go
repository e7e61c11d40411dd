package concurrency

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic so it can travel an error path.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// recoverWithCallback converts a panic in the calling goroutine into a
// PanicError delivered to the callback. Use in a defer.
func recoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		callback(&PanicError{Value: r, Stack: debug.Stack()})
	}
}
