package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func middlewareWeb(log *slog.Logger, tracer trace.Tracer, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "web", trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		v := web.Values{
			TraceID: span.SpanContext().TraceID().String(),
			Tracer:  tracer,
			Now:     time.Now().UTC(),
		}
		ctx = web.SetValues(ctx, &v)
		r = r.WithContext(ctx)

		log.DebugContext(ctx, "request started", "method", r.Method, "path", r.URL.Path, "remoteaddr", r.RemoteAddr)

		h(w, r)

		span.SetAttributes(attribute.Int("http.status_code", v.StatusCode))
		log.DebugContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path,
			"statuscode", v.StatusCode, "since", time.Since(v.Now).String())
	})
}
