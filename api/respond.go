package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rs/zerolog"
)

const maxResponseSize = 10 * 1024 * 1024

type Responder struct {
	logger zerolog.Logger
}

func NewResponder(logger zerolog.Logger) Responder {
	return Responder{logger}
}

func (r Responder) WriteJSON(w http.ResponseWriter, data any) {
	r.WriteJSONStatus(w, http.StatusOK, data)
}

// WriteJSONStatus marshals data first so a marshal failure can still become a clean 500.
func (r Responder) WriteJSONStatus(w http.ResponseWriter, status int, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("error marshaling response data")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(jsonData) > maxResponseSize {
		r.logger.Error().
			Int("responseSize", len(jsonData)).
			Int("maxSize", maxResponseSize).
			Msg("response too large")
		status = http.StatusInternalServerError
		jsonData, _ = json.Marshal(ErrorResponse{Error: "Response too large", Status: "error"})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonData); err != nil {
		r.logger.Error().Err(err).Msg("error writing response")
	}
}

// WriteText writes body verbatim as text/plain.
func (r Responder) WriteText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		r.logger.Error().Err(err).Msg("error writing response")
	}
}

// WriteError maps *errs.ApiErr to its status code. Anything else, and any ApiErr of 500 or
// above, is logged in full and answered with a fixed message.
func (r Responder) WriteError(w http.ResponseWriter, err error) {
	var apiErr *errs.ApiErr
	if !errors.As(err, &apiErr) || apiErr.Internal() {
		status := http.StatusInternalServerError
		full := err.Error()
		if apiErr != nil {
			status = apiErr.StatusCode
			full = apiErr.GetFullError()
		}
		event := r.logger.Error().Int("status", status)
		if errs.IsPartialFailure(err) {
			event = event.Bool("partialFailure", true)
		}
		event.Msg(full)
		r.WriteJSONStatus(w, status, ErrorResponse{
			Error:  "Internal Server Error",
			Status: "error",
		})
		return
	}

	switch {
	case errs.IsMissingRequiredFieldError(err), errs.IsInvalidFieldError(err):
		r.logger.Debug().Int("status", apiErr.StatusCode).Str("field", apiErr.Field).Msg("rejected input")
	case errs.IsNotFound(err):
		r.logger.Debug().Int("status", apiErr.StatusCode).Msg(apiErr.Error())
	}
	r.WriteJSONStatus(w, apiErr.StatusCode, ErrorResponse{
		Error:   apiErr.Error(),
		Status:  "error",
		Field:   apiErr.Field,
		Details: apiErr.Details,
	})
}
