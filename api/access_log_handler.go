package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AccessLogService is the access log behaviour the handlers call. *services.AccessLogService satisfies it.
type AccessLogService interface {
	List(ctx context.Context, page, limit int) (*services.AccessLogPage, error)
	Stats(ctx context.Context) (*models.AccessStats, error)
	RecordClientIP(ctx context.Context, in services.ClientIPInput) (*models.AccessLog, error)
}

type accessLogHandler struct {
	responder Responder
	logger    zerolog.Logger
	logs      AccessLogService
}

func newAccessLogHandler(logs AccessLogService) accessLogHandler {
	logger := log.With().Str("handlerName", "accessLogHandler").Logger()

	return accessLogHandler{
		responder: NewResponder(logger),
		logger:    logger,
		logs:      logs,
	}
}

// getLogs lists access logs, newest first
// @Summary Get access logs
// @Tags AccessLogs
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page, default 1"
// @Param limit query int false "Page size, default 50, max 200"
// @Success 200 {object} services.AccessLogPage
// @Failure 400 {object} ErrorResponse
// @Router /access-logs/logs [get]
func (h accessLogHandler) getLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.logs.List(r.Context(), page, limit)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, result)
	}
}

// getStats aggregates access logs for the dashboard
// @Summary Get access statistics
// @Tags AccessLogs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.AccessStats
// @Router /access-logs/stats [get]
func (h accessLogHandler) getStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.logs.Stats(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, stats)
	}
}

// reportClientIP stores the visitor IP the frontend observed
// @Summary Report client IP
// @Tags AccessLogs
// @Accept json
// @Produce json
// @Param body body services.ClientIPInput true "Visitor details"
// @Success 201 {object} models.AccessLog
// @Failure 400 {object} ErrorResponse "Bad Request - Missing or invalid ip"
// @Router /access-logs/client-ip [post]
func (h accessLogHandler) reportClientIP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in services.ClientIPInput
		if err := decodeJSON(w, r, &in); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if in.UserAgent == "" {
			in.UserAgent = r.UserAgent()
		}
		if in.Referrer == "" {
			in.Referrer = r.Referer()
		}

		entry, err := h.logs.RecordClientIP(r.Context(), in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSONStatus(w, http.StatusCreated, entry)
	}
}

// queryInt reads an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewInvalidFieldError(name, "must be an integer")
	}
	return v, nil
}
