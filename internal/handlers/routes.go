package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/security"
	"dictation/internal/service"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig holds what the HTTP API is built from
type RouterConfig struct {
	Sessions *service.SessionService
	Reports  *service.ReportService
	Signer   *security.TokenSigner
	CSRF     *security.CSRFGenerator
	DB       Pinger
	ClientIP *security.ClientIPResolver
	// ClipFile maps a word's clip path to a local file
	ClipFile func(clip string) string
	Logger   *zap.Logger
}

// NewRouter registers every route and wraps them in the common middleware
func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrNop(cfg.Logger)
	m := NewMiddleware(cfg.Sessions, cfg.Signer, cfg.CSRF, logger)
	sessions := NewSessionHandler(cfg.Sessions, cfg.Signer, cfg.CSRF, cfg.ClipFile, logger)
	reports := NewReportHandler(cfg.Reports, cfg.ClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", sessions.CreateSession)
	mux.HandleFunc("GET /api/session", m.RequireSession(sessions.GetSession))
	mux.HandleFunc("DELETE /api/session", m.RequireSession(sessions.DeleteSession))
	mux.HandleFunc("PUT /api/session/preferences", m.RequireSession(sessions.UpdatePreferences))
	mux.HandleFunc("POST /api/session/pick", m.RequireSession(sessions.Pick))
	mux.HandleFunc("PUT /api/session/answer", m.RequireSession(sessions.SetAnswer))
	mux.HandleFunc("POST /api/session/submit", m.RequireSession(sessions.Submit))
	mux.HandleFunc("POST /api/session/skip", m.RequireSession(sessions.Skip))
	mux.HandleFunc("GET /api/session/audio", m.RequireSession(sessions.Clip))
	mux.HandleFunc("POST /api/session/audio/play", m.RequireSession(sessions.PlayAudio))
	mux.HandleFunc("POST /api/session/audio/stop", m.RequireSession(sessions.StopAudio))
	mux.HandleFunc("GET /api/levels", m.RequireSession(sessions.Levels))
	mux.HandleFunc("POST /api/reports", reports.Submit)
	mux.HandleFunc("GET /healthz", health(cfg.DB, logger))

	return Recover(logger)(Logging(logger)(mux))
}

func health(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respondWithError(w, logger, http.StatusServiceUnavailable, "database unavailable", "health check failed", err)
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
