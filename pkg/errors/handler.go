package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Errors raised inside mutation callbacks, loop tasks and renders have no
// caller left to return to. They all go to one process-wide handler.

var (
	// DefaultHandler receives every reported error. It starts out as a
	// LogHandler on slog.Default().
	DefaultHandler ErrorHandler = &LogHandler{}

	handlerMu sync.RWMutex
)

// SetHandler installs h and returns the handler it replaces. Nil installs a
// fresh LogHandler.
func SetHandler(h ErrorHandler) ErrorHandler {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	prev := DefaultHandler
	if h == nil {
		h = &LogHandler{}
	}
	DefaultHandler = h
	return prev
}

func currentHandler() ErrorHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return DefaultHandler
}

// Report stamps err and hands it to the handler.
func Report(err *SyncError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	if h := currentHandler(); h != nil {
		h.HandleError(err)
	}
}

// ReportPanic hands a recovered panic to the handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	if h := currentHandler(); h != nil {
		h.HandlePanic(err)
	}
}

// Recover reports a panic in the calling function and lets it return.
//
//	defer errors.Recover("dom.Loop")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(newPanic(op, "", "", r))
	}
}

// RecoverField is Recover for code deriving one field of a record type. The
// report names the type and field so the strategy at fault can be found.
//
//	defer errors.RecoverField("model.rederive", "select", "options")
func RecoverField(op, typ, field string) {
	if r := recover(); r != nil {
		ReportPanic(newPanic(op, typ, field, r))
	}
}

func newPanic(op, typ, field string, value any) *PanicError {
	return &PanicError{
		Op:         op,
		Type:       typ,
		Field:      field,
		Value:      value,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	}
}

// CaptureStack returns the caller's stack, one "function\n\tfile:line"
// entry per frame. Runtime frames such as the panic machinery are left out.
func CaptureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(2, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
