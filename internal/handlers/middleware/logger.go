package middleware

import (
	"net/http"
	"time"
)

type logger interface {
	Info(msg string, args ...any)
}

type responseData struct {
	status int
	size   int
}

type loggingWriter struct {
	http.ResponseWriter
	data responseData
}

func (w *loggingWriter) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.data.size += size
	return size, err
}

func (w *loggingWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.status = statusCode
}

// LoggerMiddleware logs every request with its outcome and the caller
// identity the gateway attached. The header is logged as received, before
// IdentityMiddleware validates it, so rejected requests are traceable too.
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &loggingWriter{
				ResponseWriter: w,
				data:           responseData{status: http.StatusOK},
			}

			next.ServeHTTP(lw, r)

			l.Info(
				"request served",
				"method", r.Method,
				"uri", r.RequestURI,
				"user", r.Header.Get(HeaderUserID),
				"duration", time.Since(start),
				"status", lw.data.status,
				"size", lw.data.size,
			)
		})
	}
}
