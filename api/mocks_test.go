package api

import (
	"context"
	"mime/multipart"
	"sync"

	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/stretchr/testify/mock"
)

type mockProjectService struct {
	mock.Mock
}

func (m *mockProjectService) List(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) Get(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) Content(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockProjectService) Create(ctx context.Context, in services.CreateProjectInput) (*models.Project, error) {
	args := m.Called(ctx, in)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) Update(ctx context.Context, id int64, in services.UpdateProjectInput) (*models.Project, error) {
	args := m.Called(ctx, id, in)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockAccessLogService struct {
	mock.Mock
}

func (m *mockAccessLogService) List(ctx context.Context, page, limit int) (*services.AccessLogPage, error) {
	args := m.Called(ctx, page, limit)
	if p := args.Get(0); p != nil {
		return p.(*services.AccessLogPage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccessLogService) Stats(ctx context.Context) (*models.AccessStats, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*models.AccessStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccessLogService) RecordClientIP(ctx context.Context, in services.ClientIPInput) (*models.AccessLog, error) {
	args := m.Called(ctx, in)
	if e := args.Get(0); e != nil {
		return e.(*models.AccessLog), args.Error(1)
	}
	return nil, args.Error(1)
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

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	return p.err
}

// captureRecorder keeps every recorded entry in memory.
type captureRecorder struct {
	mu      sync.Mutex
	entries []models.AccessLog
}

func (c *captureRecorder) Record(entry models.AccessLog) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return true
}

func (c *captureRecorder) all() []models.AccessLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.AccessLog(nil), c.entries...)
}
