// Package invariant provides contract assertions for Grimoire's compiler
// and runtime, adapted from the teacher's core/invariant package. All
// functions panic on violation — these guard genuinely unreachable internal
// states, never user or spell-authoring errors (those are ordinary Go
// errors returned from the lexer/parser/validator).
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal invariant during function execution.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including a typed nil pointer/interface.
func NotNil(value interface{}, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// Positive panics if value <= 0.
func Positive(value int, name string) {
	if value <= 0 {
		fail("POSTCONDITION", "%s must be positive, got %d", name, value)
	}
}

// ExpectNoError panics if err is not nil.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

func fail(kind, format string, args ...interface{}) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]interface{}{kind}, args...)...)
	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}
	panic(msg)
}
