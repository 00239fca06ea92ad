package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/security"
	"dictation/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	sessions *service.SessionService
	signer   *security.TokenSigner
	csrf     *security.CSRFGenerator
	logger   *zap.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(sessions *service.SessionService, signer *security.TokenSigner, csrf *security.CSRFGenerator, logger *zap.Logger) *Middleware {
	return &Middleware{sessions: sessions, signer: signer, csrf: csrf, logger: logging.OrNop(logger)}
}

// RequireSession resolves the session token from the Authorization header or
// the session cookie. Cookie-authenticated requests that change state must
// also carry the CSRF header.
func (m *Middleware) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		id, err := m.signer.Verify(token)
		if err != nil {
			if fromCookie {
				http.SetCookie(w, security.CreateDeleteCookie(r))
			}
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "rejected session token", err)
			return
		}

		if fromCookie && !safeMethod(r.Method) && !m.csrf.Valid(id, r.Header.Get(security.CSRFHeader)) {
			respondWithError(w, m.logger, http.StatusForbidden, ErrForbiddenCSRF, "", nil)
			return
		}

		sess, err := m.sessions.Get(r.Context(), id)
		if errors.Is(err, service.ErrSessionNotFound) {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "session unavailable", err)
			return
		}
		if err != nil {
			respondWithError(w, m.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to load session", err)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, sess)
		next(w, r.WithContext(ctx))
	}
}

func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(t), false
		}
		return "", false
	}
	if c, err := r.Cookie(security.SessionCookieName); err == nil {
		return c.Value, true
	}
	return "", false
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *service.Session {
	sess, _ := ctx.Value(SessionContextKey).(*service.Session)
	return sess
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging middleware logs HTTP requests
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// Recover turns handler panics into 500 responses
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("handler panic", zap.Any("panic", v), zap.String("path", r.URL.Path), zap.Stack("stack"))
					respondJSON(w, http.StatusInternalServerError, errorResponse{Error: ErrInternalServerError})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
