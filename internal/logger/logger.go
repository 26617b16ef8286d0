// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/rschio/ledger/internal/web"
)

// New constructs a slog Logger writing JSON records to w at level or above.
// Every record carries the service name and the trace id of its context.
func New(w io.Writer, level slog.Level, service string) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}
	jh := slog.NewJSONHandler(w, &opts)
	return slog.New(withTraceID{Handler: jh}).With("service", service)
}

// ParseLevel parses names such as "debug" or "INFO" into a level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

type withTraceID struct {
	slog.Handler
}

func (h withTraceID) Handle(ctx context.Context, r slog.Record) error {
	r.Add("trace_id", web.GetTraceID(ctx))

	return h.Handler.Handle(ctx, r)
}

func (h withTraceID) WithAttrs(attrs []slog.Attr) slog.Handler {
	return withTraceID{Handler: h.Handler.WithAttrs(attrs)}
}

func (h withTraceID) WithGroup(name string) slog.Handler {
	return withTraceID{Handler: h.Handler.WithGroup(name)}
}

// LogcCtx logs at level reporting the source of the caller skip frames up
// the stack instead of the helper that called it.
func LogcCtx(ctx context.Context, log *slog.Logger, level slog.Level, skip int, msg string, args ...any) {
	if !log.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:]) // skip [Callers, LogcCtx]

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)

	log.Handler().Handle(ctx, r)
}
