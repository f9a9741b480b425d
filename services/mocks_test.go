package services

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/rpupo63/portfolio-cms/database"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/storage"
	"github.com/stretchr/testify/mock"
)

type mockProjectStore struct {
	mock.Mock
}

func (m *mockProjectStore) FindAll(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectStore) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectStore) Add(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *mockProjectStore) Update(ctx context.Context, id int64, changes database.ProjectChanges) (*models.Project, error) {
	args := m.Called(ctx, id, changes)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectStore) SetContentPath(ctx context.Context, id int64, contentPath string) (*models.Project, error) {
	args := m.Called(ctx, id, contentPath)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectStore) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Upload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	args := m.Called(ctx, fh)
	return args.String(0), args.Error(1)
}

func (m *mockBlobStore) DeleteByURL(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

type mockAccessLogStore struct {
	mock.Mock
}

func (m *mockAccessLogStore) Add(ctx context.Context, entry *models.AccessLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAccessLogStore) FindPage(ctx context.Context, page, limit int) ([]models.AccessLog, int64, error) {
	args := m.Called(ctx, page, limit)
	if l := args.Get(0); l != nil {
		return l.([]models.AccessLog), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *mockAccessLogStore) Stats(ctx context.Context, days, top int) (*models.AccessStats, error) {
	args := m.Called(ctx, days, top)
	if s := args.Get(0); s != nil {
		return s.(*models.AccessStats), args.Error(1)
	}
	return nil, args.Error(1)
}

// failingFiles is a content store whose writes always fail.
type failingFiles struct {
	ContentFiles
	err     error
	removed []string
}

func (f *failingFiles) Write(name string, body string) error {
	return f.err
}

func (f *failingFiles) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

// writeOnceFiles accepts the first write and fails every later one.
type writeOnceFiles struct {
	*storage.ContentStore
	writes int
}

func (f *writeOnceFiles) Write(name string, body string) error {
	f.writes++
	if f.writes > 1 {
		return errors.New("disk full")
	}
	return f.ContentStore.Write(name, body)
}
