package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectChanges is a partial update. Nil fields are left untouched.
type ProjectChanges struct {
	Title     *string
	Summary   *string
	Tags      *[]string
	Thumbnail *string
	Duration  *string
	Category  *models.Category

	// ContentChanged marks a body rewrite, which refreshes updated_at even when no column changes.
	ContentChanged bool
}

// Empty reports whether the update would change nothing.
func (c ProjectChanges) Empty() bool {
	return len(c.columns()) == 0 && !c.ContentChanged
}

// columns maps each supplied field to its column. Only these columns can ever be
// written by an update; content_path, id and the timestamps are not reachable.
func (c ProjectChanges) columns() map[string]any {
	cols := make(map[string]any)
	if c.Title != nil {
		cols["title"] = *c.Title
	}
	if c.Summary != nil {
		cols["summary"] = *c.Summary
	}
	if c.Tags != nil {
		cols["tags"] = datatypes.JSONSlice[string](normalizeTags(*c.Tags))
	}
	if c.Thumbnail != nil {
		cols["thumbnail"] = *c.Thumbnail
	}
	if c.Duration != nil {
		cols["duration"] = *c.Duration
	}
	if c.Category != nil {
		cols["category"] = string(*c.Category)
	}
	return cols
}

type ProjectRepo struct {
	db *gorm.DB
}

func NewProjectRepo(db *gorm.DB) *ProjectRepo {
	return &ProjectRepo{db}
}

// FindAll returns all projects, newest id first
func (r *ProjectRepo) FindAll(ctx context.Context) ([]*models.Project, error) {
	projects := []*models.Project{}
	err := r.db.WithContext(ctx).Order("id DESC").Find(&projects).Error
	return projects, err
}

// FindByID returns a project by its ID
func (r *ProjectRepo) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFound("project")
		}
		return nil, err
	}
	return &project, nil
}

// Add inserts a new project. The id, timestamps and an empty content path are assigned
// by the database and written back into project.
func (r *ProjectRepo) Add(ctx context.Context, project *models.Project) error {
	project.ID = 0
	project.ContentPath = ""
	project.Tags = normalizeTags(project.Tags)
	return r.db.WithContext(ctx).Create(project).Error
}

// Update applies changes to the project with the given id and returns the stored row.
// An empty change set returns the current row without touching updated_at.
func (r *ProjectRepo) Update(ctx context.Context, id int64, changes ProjectChanges) (*models.Project, error) {
	if changes.Empty() {
		return r.FindByID(ctx, id)
	}
	cols := changes.columns()
	cols["updated_at"] = time.Now()

	var project models.Project
	result := r.db.WithContext(ctx).
		Model(&project).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(cols)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errs.NewNotFound("project")
	}
	return &project, nil
}

// SetContentPath records the markdown file of a project. It is only called while
// creating a project, so updated_at is left alone.
func (r *ProjectRepo) SetContentPath(ctx context.Context, id int64, contentPath string) (*models.Project, error) {
	var project models.Project
	result := r.db.WithContext(ctx).
		Model(&project).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn("content_path", contentPath)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errs.NewNotFound("project")
	}
	return &project, nil
}

// Delete removes a project by id and reports whether a row existed
func (r *ProjectRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Project{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// normalizeTags trims tags, drops blanks, and never returns nil so the column stays a JSON array.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
