package api

import (
	"net/http"
	"time"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Authenticator logs the admin in and verifies session tokens. *services.AuthService satisfies it.
type Authenticator interface {
	SessionVerifier
	Login(password string) (*services.Session, error)
}

type authHandler struct {
	responder Responder
	logger    zerolog.Logger
	auth      Authenticator
}

func newAuthHandler(auth Authenticator) authHandler {
	logger := log.With().Str("handlerName", "authHandler").Logger()

	return authHandler{
		responder: NewResponder(logger),
		logger:    logger,
		auth:      auth,
	}
}

// login exchanges the admin password for a session token
// @Summary Admin login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Admin password"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h authHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if req.Password == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("password"))
			return
		}

		session, err := h.auth.Login(req.Password)
		if err != nil {
			h.logger.Warn().Str("client_ip", ctxGetClientIP(r.Context())).Msg("admin login refused")
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("client_ip", ctxGetClientIP(r.Context())).Msg("admin logged in")
		h.responder.WriteJSON(w, SessionResponse{
			Token:            session.Token,
			ExpiresAt:        session.ExpiresAt.UTC().Format(time.RFC3339),
			RemainingSeconds: int64(time.Until(session.ExpiresAt).Seconds()),
		})
	}
}

// session reports how long the caller's token stays valid
// @Summary Admin session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/session [get]
func (h authHandler) session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expiresAt, ok := ctxGetSessionExpiry(r.Context())
		if !ok {
			h.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}

		remaining := time.Until(expiresAt)
		if remaining < 0 {
			remaining = 0
		}
		h.responder.WriteJSON(w, SessionResponse{
			ExpiresAt:        expiresAt.UTC().Format(time.RFC3339),
			RemainingSeconds: int64(remaining.Seconds()),
		})
	}
}
