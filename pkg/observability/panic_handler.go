package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
//
//	func worker() {
//	    defer observability.RecoverPanic(logger, "audit worker")
//	    ...
//	}
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by callback, which runs
// only when a panic was recovered
func RecoverPanicWithCallback(logger *Logger, where string, callback func(recovered interface{})) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback(r)
		}
	}
}

// MustRecover converts a recovered value to an error, nil when r is nil.
//
//	defer func() {
//	    if err = observability.MustRecover(recover()); err != nil { ... }
//	}()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}

func logPanic(logger *Logger, where string, r interface{}) {
	if logger == nil {
		logger = NewNopLogger()
	}
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
