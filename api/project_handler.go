package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxJSONBodyBytes = 32 << 20

// ProjectService is the project behaviour the handlers call. *services.ProjectService satisfies it.
type ProjectService interface {
	List(ctx context.Context) ([]*models.Project, error)
	Get(ctx context.Context, id int64) (*models.Project, error)
	Content(ctx context.Context, id int64) (string, error)
	Create(ctx context.Context, in services.CreateProjectInput) (*models.Project, error)
	Update(ctx context.Context, id int64, in services.UpdateProjectInput) (*models.Project, error)
	Delete(ctx context.Context, id int64) error
}

type projectHandler struct {
	responder Responder
	logger    zerolog.Logger
	projects  ProjectService
}

func newProjectHandler(projects ProjectService) projectHandler {
	logger := log.With().Str("handlerName", "projectHandler").Logger()

	return projectHandler{
		responder: NewResponder(logger),
		logger:    logger,
		projects:  projects,
	}
}

// getAllProjects lists project metadata
// @Summary Get all projects
// @Description Retrieves every project, newest first, without markdown bodies
// @Tags Projects
// @Produce json
// @Success 200 {array} models.Project
// @Failure 500 {object} ErrorResponse
// @Router /projects [get]
func (h projectHandler) getAllProjects() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := h.projects.List(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, projects)
	}
}

// getProject retrieves one project's metadata
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} ErrorResponse "Bad Request - Invalid id"
// @Failure 404 {object} ErrorResponse "Not Found - Project not found"
// @Router /projects/{id} [get]
func (h projectHandler) getProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		project, err := h.projects.Get(r.Context(), id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, project)
	}
}

// getProjectContent returns the raw markdown body
// @Summary Get project content
// @Tags Projects
// @Produce plain
// @Param id path int true "Project ID"
// @Success 200 {string} string "Markdown body"
// @Failure 404 {object} ErrorResponse "Not Found - Project or body not found"
// @Router /projects/{id}/content [get]
func (h projectHandler) getProjectContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		body, err := h.projects.Content(r.Context(), id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteText(w, body)
	}
}

// createProject creates a project and its markdown file
// @Summary Create project
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param project body services.CreateProjectInput true "Project with markdown content"
// @Success 201 {object} models.Project
// @Failure 400 {object} ErrorResponse "Bad Request - Missing title or content"
// @Failure 401 {object} ErrorResponse
// @Router /projects [post]
func (h projectHandler) createProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in services.CreateProjectInput
		if err := decodeJSON(w, r, &in); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		project, err := h.projects.Create(r.Context(), in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSONStatus(w, http.StatusCreated, project)
	}
}

// updateProject applies a partial update
// @Summary Update project
// @Description Accepts any subset of title, summary, tags, thumbnail, duration, category and content. Other keys are rejected.
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} ErrorResponse "Bad Request - Unknown or invalid field"
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id} [put]
func (h projectHandler) updateProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var raw map[string]json.RawMessage
		if err := decodeJSON(w, r, &raw); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		in, err := parseProjectUpdate(raw)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		project, err := h.projects.Update(r.Context(), id, in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, project)
	}
}

// deleteProject removes a project, its markdown file and its thumbnail
// @Summary Delete project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id} [delete]
func (h projectHandler) deleteProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.projects.Delete(r.Context(), id); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, MessageResponse{Message: "project deleted"})
	}
}

// updatableFields maps each accepted update key to the setter for its field.
var updatableFields = map[string]func(raw json.RawMessage, in *services.UpdateProjectInput) error{
	"title": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Title)
	},
	"summary": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Summary)
	},
	"tags": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Tags)
	},
	"thumbnail": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Thumbnail)
	},
	"duration": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Duration)
	},
	"category": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Changes.Category)
	},
	"content": func(raw json.RawMessage, in *services.UpdateProjectInput) error {
		return json.Unmarshal(raw, &in.Content)
	},
}

// parseProjectUpdate turns a JSON object into an update. Keys outside updatableFields,
// including contentPath and id, are rejected. A null value leaves the field unchanged.
func parseProjectUpdate(raw map[string]json.RawMessage) (services.UpdateProjectInput, error) {
	var in services.UpdateProjectInput
	for key, value := range raw {
		set, ok := updatableFields[key]
		if !ok {
			return services.UpdateProjectInput{}, errs.NewInvalidFieldError(key, "field cannot be updated")
		}
		if err := set(value, &in); err != nil {
			return services.UpdateProjectInput{}, errs.NewInvalidFieldError(key, "wrong type")
		}
	}
	return in, nil
}

func projectIDParam(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		return 0, errs.NewBadRequestError("missing project id")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		return 0, errs.NewBadRequestError("invalid project id")
	}
	return id, nil
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errs.NewMaxBodySizeExceededError(maxJSONBodyBytes)
		case errors.Is(err, io.EOF):
			return errs.NewMalformedPayloadError("JSON", fmt.Errorf("empty body"))
		default:
			return errs.NewMalformedPayloadError("JSON", err)
		}
	}
	return nil
}
