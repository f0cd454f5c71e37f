package servers

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/reusee/infsite/logs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// statusWriter records what the wrapped handler sent. Unwrap keeps
// http.ResponseController able to reach the underlying Flusher.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.size += n
	return n, err
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logging gives every request a log span and logs it when it ends.
type Logging func(http.Handler) http.Handler

func (Module) Logging(
	newSpan logs.NewSpan,
	logger logs.Logger,
) Logging {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, _ = newSpan(ctx, "")
			r = r.WithContext(ctx)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logger.InfoContext(ctx, "request",
				"method", r.Method,
				"path", r.URL.RequestURI(),
				"status", sw.status,
				"size", sw.size,
				"duration", time.Since(start),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 when nothing was sent yet.
type Recovery func(http.Handler) http.Handler

func (Module) Recovery(
	logger logs.Logger,
) Recovery {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "panic",
					"error", logs.WrapSpan(ctx, fmt.Errorf("%v", p)),
					"stack", string(debug.Stack()),
				)
				if sw.status == 0 {
					http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
