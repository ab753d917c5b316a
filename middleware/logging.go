package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// Logging returns an interceptor that logs each exchange at debug level.
// With verbose set, request and response headers are logged at info level
// with credentials redacted.
func Logging(logger *slog.Logger, verbose bool) Interceptor {
	if logger == nil {
		return nil
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			level := slog.LevelDebug
			if verbose {
				level = slog.LevelInfo
				logger.LogAttrs(r.Context(), level, "api request",
					slog.String("method", r.Method),
					slog.String("url", r.URL.Redacted()),
					slog.String("request_id", r.Header.Get(RequestIDHeader)),
					slog.Any("headers", redact(r.Header)),
				)
			}

			resp, err := next.RoundTrip(r)
			elapsed := time.Since(start)
			if err != nil {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "api transport error",
					slog.String("method", r.Method),
					slog.String("url", r.URL.Redacted()),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("url", r.URL.Redacted()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("elapsed", elapsed),
			}
			if verbose {
				attrs = append(attrs, slog.Any("headers", redact(resp.Header)))
			}
			logger.LogAttrs(r.Context(), level, "api response", attrs...)
			return resp, nil
		})
	}
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		if redactedHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = h.Get(k)
	}
	return out
}
