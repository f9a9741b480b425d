package services

import (
	"context"
	"fmt"
	"io"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
)

// ContentProblem is a project whose markdown body cannot be served.
type ContentProblem struct {
	ProjectID   int64
	Title       string
	ContentPath string
	Reason      string
	Repaired    bool
}

const (
	reasonNoPointer   = "content path is empty"
	reasonMissingFile = "markdown file is missing"
)

// CheckContent finds projects left without a readable body by a failed create or by files
// removed outside the application. With repair set, an empty body file is written and the
// row pointed at it.
func (s *ProjectService) CheckContent(ctx context.Context, repair bool) ([]ContentProblem, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	problems := []ContentProblem{}
	for _, p := range projects {
		problem := ContentProblem{ProjectID: p.ID, Title: p.Title, ContentPath: p.ContentPath}

		if p.ContentPath == "" {
			problem.Reason = reasonNoPointer
		} else {
			exists, err := s.files.Exists(p.ContentPath)
			if err != nil {
				return nil, errs.NewStorageError("check markdown", err)
			}
			if exists {
				continue
			}
			problem.Reason = reasonMissingFile
		}

		if repair {
			name, err := s.repairContent(ctx, p)
			if err != nil {
				return nil, err
			}
			problem.Repaired = true
			problem.ContentPath = name
		}
		problems = append(problems, problem)
	}
	return problems, nil
}

// repairContent returns the file name the project now points at.
func (s *ProjectService) repairContent(ctx context.Context, p *models.Project) (string, error) {
	name := p.ContentPath
	if name == "" {
		name = models.ContentFileName(p.ID)
	}

	exists, err := s.files.Exists(name)
	if err != nil {
		return "", errs.NewStorageError("check markdown", err)
	}
	if !exists {
		if err := s.files.Write(name, ""); err != nil {
			return "", errs.NewStorageError("write markdown", err)
		}
	}

	if p.ContentPath == "" {
		if _, err := s.projects.SetContentPath(ctx, p.ID, name); err != nil {
			return "", errs.NewDatabaseError("set content path of", "project", err)
		}
	}
	s.logger.Info().Int64("projectID", p.ID).Str("contentPath", name).Msg("repaired project content")
	return name, nil
}

// WriteContentReport prints problems one per line and returns how many there were.
func WriteContentReport(w io.Writer, problems []ContentProblem) int {
	fmt.Fprintln(w, "=== CONTENT CHECK ===")
	for _, p := range problems {
		fmt.Fprintf(w, "project %d (%s): %s", p.ProjectID, p.Title, p.Reason)
		if p.Repaired {
			fmt.Fprintf(w, ", repaired as %s", p.ContentPath)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Projects without a readable body: %d\n", len(problems))
	return len(problems)
}
