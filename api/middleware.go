package api

import (
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionVerifier checks an admin bearer token and returns its expiry.
type SessionVerifier interface {
	Verify(token string) (time.Time, error)
}

type authMiddleware struct {
	responder Responder
	verifier  SessionVerifier
}

func newAuthMiddleware(verifier SessionVerifier) authMiddleware {
	logger := log.With().Str("handlerName", "authMiddleware").Logger()
	return authMiddleware{
		responder: NewResponder(logger),
		verifier:  verifier,
	}
}

// authenticate rejects requests without a valid admin token.
func (m authMiddleware) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			m.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}

		expiresAt, err := m.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			m.responder.WriteError(w, err)
			return
		}

		ctx := ctxWithSessionExpiry(r.Context(), expiresAt)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func LogInternalServerErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srw := &statusResponseWriter{ResponseWriter: w, status: 200}

		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Error().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", err).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic")

				// Write 500 if nothing written yet
				if !srw.wroteHeader {
					NewResponder(log.Logger).WriteError(srw, errs.NewInternalErrorWithCause("panic", nil))
				}
			}
		}()

		next.ServeHTTP(srw, r)

		if srw.status == http.StatusInternalServerError {
			log.Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("500 error response")
		}
	})
}

// corsMiddleware allows the configured frontend origins to call the API with credentials
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// newColoredHTTPLoggingMiddleware logs HTTP requests with colored output based on status codes.
// out is the console the lines go to.
func newColoredHTTPLoggingMiddleware(out io.Writer) func(http.Handler) http.Handler {
	colorLogger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			srw := &statusResponseWriter{ResponseWriter: w, status: 200}

			next.ServeHTTP(srw, r)

			duration := time.Since(start)

			var logEvent *zerolog.Event
			switch {
			case srw.status >= 500:
				logEvent = colorLogger.Error()
			case srw.status >= 400:
				logEvent = colorLogger.Warn()
			default:
				logEvent = colorLogger.Info()
			}

			logEvent.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", srw.status).
				Dur("duration", duration).
				Str("client_ip", ctxGetClientIP(r.Context())).
				Msg("HTTP Request")
		})
	}
}

// AccessRecorder queues access log rows without blocking.
type AccessRecorder interface {
	Record(entry models.AccessLog) bool
}

// unloggedPaths are probe endpoints kept out of the access log.
var unloggedPaths = map[string]bool{
	"/metrics": true,
	"/healthz": true,
}

// accessLogMiddleware records one access log row per response after it has been written.
func accessLogMiddleware(recorder AccessRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			srw := &statusResponseWriter{ResponseWriter: w, status: 200}

			next.ServeHTTP(srw, r)

			if unloggedPaths[r.URL.Path] {
				return
			}

			elapsed := time.Since(start).Milliseconds()
			if elapsed < 0 {
				elapsed = 0
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "unknown"
			}

			entry := models.AccessLog{
				Timestamp:    start,
				IP:           ctxGetClientIP(r.Context()),
				UserAgent:    userAgent,
				Path:         r.URL.Path,
				Method:       r.Method,
				StatusCode:   srw.status,
				ResponseTime: elapsed,
			}
			if ref := r.Referer(); ref != "" {
				entry.Referrer = &ref
			}
			entry.Clean()

			recorder.Record(entry)
		})
	}
}
