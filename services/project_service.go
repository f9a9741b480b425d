package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rpupo63/portfolio-cms/database"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProjectStore is the persistence the project service needs. *database.ProjectRepo satisfies it.
type ProjectStore interface {
	FindAll(ctx context.Context) ([]*models.Project, error)
	FindByID(ctx context.Context, id int64) (*models.Project, error)
	Add(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, id int64, changes database.ProjectChanges) (*models.Project, error)
	SetContentPath(ctx context.Context, id int64, contentPath string) (*models.Project, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// ContentFiles stores markdown bodies by file name. *storage.ContentStore satisfies it.
type ContentFiles interface {
	Write(name string, body string) error
	Read(name string) (string, error)
	Exists(name string) (bool, error)
	Remove(name string) error
}

type CreateProjectInput struct {
	Title     string          `json:"title" validate:"notblank"`
	Summary   string          `json:"summary"`
	Tags      []string        `json:"tags"`
	Thumbnail string          `json:"thumbnail"`
	Duration  string          `json:"duration"`
	Category  models.Category `json:"category" validate:"omitempty,category"`
	Content   string          `json:"content" validate:"notblank"`
}

// UpdateProjectInput carries the allowed metadata changes plus an optional new body.
type UpdateProjectInput struct {
	Changes database.ProjectChanges
	Content *string
}

// Empty reports whether the input changes nothing.
func (in UpdateProjectInput) Empty() bool {
	return in.Changes.Empty() && in.Content == nil
}

type ProjectService struct {
	projects ProjectStore
	files    ContentFiles
	blobs    storage.BlobStore
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewProjectService(projects ProjectStore, files ContentFiles, blobs storage.BlobStore) *ProjectService {
	return &ProjectService{
		projects: projects,
		files:    files,
		blobs:    blobs,
		validate: newValidator(),
		logger:   log.With().Str("serviceName", "projectService").Logger(),
	}
}

// List returns every project's metadata, newest first. Bodies are never loaded.
func (s *ProjectService) List(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.projects.FindAll(ctx)
	if err != nil {
		return nil, errs.NewDatabaseError("list", "projects", err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, errs.NewDatabaseError("get", "project", err)
	}
	return project, nil
}

// Content returns the markdown body of a project exactly as last written.
func (s *ProjectService) Content(ctx context.Context, id int64) (string, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if project.ContentPath == "" {
		return "", errs.NewNotFound("project content")
	}

	body, err := s.files.Read(project.ContentPath)
	if err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			return "", errs.NewNotFound("project content")
		}
		return "", errs.NewStorageError("read markdown", err)
	}
	return body, nil
}

// Create inserts the row, writes project-{id}.md and records the file name on the row.
// If either of the last two steps fails the row and any written file are removed again.
func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.Category == "" {
		in.Category = models.CategoryProject
	}

	project := &models.Project{
		Title:     strings.TrimSpace(in.Title),
		Summary:   in.Summary,
		Tags:      in.Tags,
		Thumbnail: in.Thumbnail,
		Duration:  in.Duration,
		Category:  in.Category,
	}
	if err := s.projects.Add(ctx, project); err != nil {
		return nil, errs.NewDatabaseError("create", "project", err)
	}

	name := models.ContentFileName(project.ID)
	if err := s.files.Write(name, in.Content); err != nil {
		return nil, s.undoCreate(project.ID, name, errs.NewStorageError("write markdown", err))
	}

	created, err := s.projects.SetContentPath(ctx, project.ID, name)
	if err != nil {
		return nil, s.undoCreate(project.ID, name, errs.NewDatabaseError("set content path of", "project", err))
	}

	s.logger.Info().Int64("projectID", created.ID).Str("contentPath", created.ContentPath).Msg("project created")
	return created, nil
}

// undoCreate removes what a failed Create left behind and returns the error to report.
// It runs on a fresh context so a cancelled request still cleans up.
func (s *ProjectService) undoCreate(id int64, name string, cause *errs.ApiErr) error {
	ctx := context.Background()
	var failed []string

	if err := s.files.Remove(name); err != nil {
		s.logger.Error().Err(err).Int64("projectID", id).Msg("failed to remove markdown after create failure")
		failed = append(failed, "remove markdown")
	}
	if _, err := s.projects.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("projectID", id).Msg("failed to delete project row after create failure")
		failed = append(failed, "delete row")
	}

	s.logger.Error().Str("error", cause.GetFullError()).Int64("projectID", id).Msg("project create rolled back")
	if len(failed) > 0 {
		return errs.NewPartialFailureError("create project", failed, cause)
	}
	return cause
}

// Update applies metadata changes and, when given, replaces the body. The body file keeps its
// name; a row left without one by an earlier failure gets project-{id}.md. If the row cannot be
// updated after the body was written, the previous body and pointer are put back.
func (s *ProjectService) Update(ctx context.Context, id int64, in UpdateProjectInput) (*models.Project, error) {
	if err := s.validateChanges(&in.Changes); err != nil {
		return nil, err
	}
	if in.Empty() {
		return s.Get(ctx, id)
	}
	if in.Content == nil {
		updated, err := s.projects.Update(ctx, id, in.Changes)
		if err != nil {
			return nil, errs.NewDatabaseError("update", "project", err)
		}
		return updated, nil
	}

	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	undo := bodyUndo{id: id, name: project.ContentPath}
	if undo.name == "" {
		undo.name = models.ContentFileName(id)
	}
	previous, err := s.files.Read(undo.name)
	switch {
	case err == nil:
		undo.previous = &previous
	case !errors.Is(err, storage.ErrContentNotFound):
		return nil, errs.NewStorageError("read markdown", err)
	}

	if err := s.files.Write(undo.name, *in.Content); err != nil {
		return nil, errs.NewStorageError("write markdown", err)
	}
	if project.ContentPath == "" {
		if _, err := s.projects.SetContentPath(ctx, id, undo.name); err != nil {
			return nil, s.undoUpdate(undo, errs.NewDatabaseError("set content path of", "project", err))
		}
		undo.pointerSet = true
		s.logger.Warn().Int64("projectID", id).Msg("restored missing content path")
	}
	in.Changes.ContentChanged = true

	updated, err := s.projects.Update(ctx, id, in.Changes)
	if err != nil {
		return nil, s.undoUpdate(undo, errs.NewDatabaseError("update", "project", err))
	}
	return updated, nil
}

// bodyUndo is what a failed Update needs to put the body back.
type bodyUndo struct {
	id         int64
	name       string
	previous   *string // nil when the file did not exist before
	pointerSet bool
}

// undoUpdate restores the body and pointer a failed Update replaced and returns the error to report.
func (s *ProjectService) undoUpdate(u bodyUndo, cause *errs.ApiErr) error {
	ctx := context.Background()
	var failed []string

	if u.previous != nil {
		if err := s.files.Write(u.name, *u.previous); err != nil {
			s.logger.Error().Err(err).Int64("projectID", u.id).Msg("failed to restore markdown after update failure")
			failed = append(failed, "restore markdown")
		}
	} else if err := s.files.Remove(u.name); err != nil {
		s.logger.Error().Err(err).Int64("projectID", u.id).Msg("failed to remove markdown after update failure")
		failed = append(failed, "remove markdown")
	}
	if u.pointerSet {
		if _, err := s.projects.SetContentPath(ctx, u.id, ""); err != nil {
			s.logger.Error().Err(err).Int64("projectID", u.id).Msg("failed to clear content path after update failure")
			failed = append(failed, "clear content path")
		}
	}

	s.logger.Error().Str("error", cause.GetFullError()).Int64("projectID", u.id).Msg("project update rolled back")
	if len(failed) > 0 {
		return errs.NewPartialFailureError("update project", failed, cause)
	}
	return cause
}

// validateChanges checks the supplied fields and trims the title in place.
func (s *ProjectService) validateChanges(c *database.ProjectChanges) error {
	if c.Title != nil {
		if err := s.validate.Var(*c.Title, "notblank"); err != nil {
			return errs.NewMissingRequiredFieldError("title")
		}
		trimmed := strings.TrimSpace(*c.Title)
		c.Title = &trimmed
	}
	if c.Category != nil && !c.Category.Valid() {
		return errs.NewInvalidFieldError("category", "must be one of project, study, record")
	}
	return nil
}

// Delete removes the row, then its markdown file and thumbnail. The last two are best effort
// and only logged.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	existed, err := s.projects.Delete(ctx, id)
	if err != nil {
		return errs.NewDatabaseError("delete", "project", err)
	}
	if !existed {
		return errs.NewNotFound("project")
	}

	name := project.ContentPath
	if name == "" {
		name = models.ContentFileName(id)
	}
	if err := s.files.Remove(name); err != nil {
		s.logger.Warn().Err(err).Int64("projectID", id).Str("contentPath", name).Msg("failed to remove markdown file")
	}

	if project.Thumbnail != "" && s.blobs != nil {
		if err := s.blobs.DeleteByURL(ctx, project.Thumbnail); err != nil {
			s.logger.Warn().Err(err).Int64("projectID", id).Str("thumbnail", project.Thumbnail).Msg("failed to delete thumbnail")
		}
	}

	s.logger.Info().Int64("projectID", id).Msg("project deleted")
	return nil
}
