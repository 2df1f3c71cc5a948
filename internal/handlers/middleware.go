package handlers

import (
	"net/http"
	"time"

	"github.com/rschio/bank/internal/web"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) middlewareWeb(tracer trace.Tracer, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "web")
		defer span.End()

		v := web.Values{
			TraceID: span.SpanContext().TraceID().String(),
			Tracer:  tracer,
			Now:     time.Now().UTC(),
		}
		ctx = web.SetValues(ctx, &v)
		r = r.WithContext(ctx)

		rec := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(&rec, r)

		span.SetAttributes(
			attribute.String("http.route", r.Pattern),
			attribute.Int("http.status_code", rec.status),
		)
		s.log.InfoContext(ctx, "request completed",
			"method", r.Method, "path", r.URL.Path, "status", rec.status,
			"since", time.Since(v.Now).String())
	})
}
