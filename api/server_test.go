package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rpupo63/portfolio-cms/config"
	"github.com/rpupo63/portfolio-cms/database"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rpupo63/portfolio-cms/services"
	"github.com/rpupo63/portfolio-cms/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassword = "let-me-in"

type testServer struct {
	handler  http.Handler
	projects *mockProjectService
	logs     *mockAccessLogService
	blobs    *mockBlobStore
	recorder *captureRecorder
	auth     *services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Load(map[string]string{
		"ACCEPTED_ORIGINS": "https://apol.site",
		"LOG_CONSOLE":      "false",
		"MAX_UPLOAD_MB":    "1",
	})
	cfg.Auth = config.AuthConfig{AdminPassword: testPassword, JWTSecret: "test-secret", TokenTTL: 2 * time.Hour}

	ts := &testServer{
		projects: new(mockProjectService),
		logs:     new(mockAccessLogService),
		blobs:    new(mockBlobStore),
		recorder: &captureRecorder{},
		auth:     services.NewAuthService(cfg.Auth),
	}
	ts.handler = newRouter(Dependencies{
		DB:         fakePinger{},
		Projects:   ts.projects,
		AccessLogs: ts.logs,
		Auth:       ts.auth,
		Blobs:      ts.blobs,
		Recorder:   ts.recorder,
	}, withConfig(cfg), withStartupTime(time.Now()))
	return ts
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	session, err := ts.auth.Login(testPassword)
	require.NoError(t, err)
	return session.Token
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProjectReadRoutes(t *testing.T) {
	ts := newTestServer(t)

	ts.projects.On("List", mock.Anything).Return([]*models.Project{
		{ID: 2, Title: "second", Tags: []string{"go"}, ContentPath: "project-2.md"},
		{ID: 1, Title: "first", Tags: []string{}, ContentPath: "project-1.md"},
	}, nil)
	ts.projects.On("Get", mock.Anything, int64(1)).Return(&models.Project{ID: 1, Title: "first", ContentPath: "project-1.md"}, nil)
	ts.projects.On("Get", mock.Anything, int64(404)).Return(nil, errs.NewNotFound("project"))
	ts.projects.On("Content", mock.Anything, int64(1)).Return("# first\n\nbody  \n", nil)

	t.Run("List", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/projects", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		projects := decodeBody[[]map[string]any](t, rec)
		require.Len(t, projects, 2)
		assert.Equal(t, float64(2), projects[0]["id"])
		assert.Equal(t, "project-2.md", projects[0]["contentPath"])
		assert.NotContains(t, projects[0], "content")
	})

	t.Run("Get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/projects/1", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "first", decodeBody[models.Project](t, rec).Title)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/projects/404", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GetInvalidID", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-4"} {
			rec := ts.do(t, http.MethodGet, "/api/projects/"+id, "", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		}
	})

	t.Run("Content", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/projects/1/content", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "# first\n\nbody  \n", rec.Body.String())
	})
}

func TestProjectWriteRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	t.Run("RequiresToken", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodPost, "/api/projects"},
			{http.MethodPut, "/api/projects/1"},
			{http.MethodDelete, "/api/projects/1"},
			{http.MethodPost, "/api/projects/upload"},
		} {
			rec := ts.do(t, tc.method, tc.path, `{"title":"x"}`, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)

			rec = ts.do(t, tc.method, tc.path, `{"title":"x"}`, "forged.token.value")
			assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		}
		ts.projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		ts.projects.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		ts.projects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Create", func(t *testing.T) {
		in := services.CreateProjectInput{Title: "New", Content: "body", Tags: []string{"a"}, Category: models.CategoryStudy}
		ts.projects.On("Create", mock.Anything, in).
			Return(&models.Project{ID: 10, Title: "New", ContentPath: "project-10.md", Category: models.CategoryStudy}, nil).Once()

		rec := ts.do(t, http.MethodPost, "/api/projects", `{"title":"New","content":"body","tags":["a"],"category":"study"}`, token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "project-10.md", decodeBody[models.Project](t, rec).ContentPath)
	})

	t.Run("CreateValidationError", func(t *testing.T) {
		ts.projects.On("Create", mock.Anything, services.CreateProjectInput{Content: "body"}).
			Return(nil, errs.NewMissingRequiredFieldError("title")).Once()

		rec := ts.do(t, http.MethodPost, "/api/projects", `{"content":"body"}`, token)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "title", body.Field)
	})

	t.Run("CreateMalformed", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/projects", `{"title":`, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InternalErrorsDoNotLeak", func(t *testing.T) {
		ts.projects.On("Create", mock.Anything, services.CreateProjectInput{Title: "boom", Content: "x"}).
			Return(nil, errs.NewDatabaseError("create", "project", errors.New("pq: password authentication failed for user admin"))).Once()

		rec := ts.do(t, http.MethodPost, "/api/projects", `{"title":"boom","content":"x"}`, token)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.Equal(t, "Internal Server Error", decodeBody[ErrorResponse](t, rec).Error)
	})

	t.Run("UpdateAllowList", func(t *testing.T) {
		for _, body := range []string{
			`{"contentPath":"../../etc/passwd"}`,
			`{"title":"ok","id":5}`,
			`{"createdAt":"2020-01-01T00:00:00Z"}`,
			`{"title; DROP TABLE projects":"x"}`,
		} {
			rec := ts.do(t, http.MethodPut, "/api/projects/1", body, token)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}

		rec := ts.do(t, http.MethodPut, "/api/projects/1", `{"title":42}`, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.projects.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UpdatePartial", func(t *testing.T) {
		title := "renamed"
		content := "new body"
		tags := []string{"x", "y"}
		want := services.UpdateProjectInput{
			Changes: database.ProjectChanges{Title: &title, Tags: &tags},
			Content: &content,
		}
		ts.projects.On("Update", mock.Anything, int64(1), want).
			Return(&models.Project{ID: 1, Title: "renamed"}, nil).Once()

		rec := ts.do(t, http.MethodPut, "/api/projects/1", `{"title":"renamed","tags":["x","y"],"content":"new body","summary":null}`, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "renamed", decodeBody[models.Project](t, rec).Title)
	})

	t.Run("UpdateEmpty", func(t *testing.T) {
		ts.projects.On("Update", mock.Anything, int64(2), services.UpdateProjectInput{}).
			Return(&models.Project{ID: 2, Title: "unchanged"}, nil).Once()

		rec := ts.do(t, http.MethodPut, "/api/projects/2", `{}`, token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "unchanged", decodeBody[models.Project](t, rec).Title)
	})

	t.Run("Delete", func(t *testing.T) {
		ts.projects.On("Delete", mock.Anything, int64(3)).Return(nil).Once()
		ts.projects.On("Delete", mock.Anything, int64(4)).Return(errs.NewNotFound("project")).Once()

		rec := ts.do(t, http.MethodDelete, "/api/projects/3", "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decodeBody[MessageResponse](t, rec).Message)

		rec = ts.do(t, http.MethodDelete, "/api/projects/4", "", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadRoute(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	send := func(field string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, field, "cover.png", []byte("\x89PNG\r\n\x1a\n0000"))
		req := httptest.NewRequest(http.MethodPost, "/api/projects/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	ts.blobs.On("Upload", mock.Anything, mock.MatchedBy(func(fh *multipart.FileHeader) bool {
		return fh.Filename == "cover.png"
	})).Return("https://cdn.example/uploads/abc_cover.png", nil).Once()

	rec := send("image")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://cdn.example/uploads/abc_cover.png", decodeBody[UploadResponse](t, rec).URL)

	rec = send("file")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.blobs.On("Upload", mock.Anything, mock.Anything).Return("", storage.ErrNotAnImage).Once()
	rec = send("image")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessLogRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	t.Run("ReadsRequireToken", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/access-logs/logs", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/access-logs/stats", "", "").Code)
	})

	t.Run("Logs", func(t *testing.T) {
		ts.logs.On("List", mock.Anything, 2, 25).Return(&services.AccessLogPage{
			Logs:       []models.AccessLog{{ID: 9, Path: "/api/projects"}},
			Pagination: models.NewPagination(2, 25, 60),
		}, nil).Once()

		rec := ts.do(t, http.MethodGet, "/api/access-logs/logs?page=2&limit=25", "", token)
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodeBody[services.AccessLogPage](t, rec)
		assert.Len(t, page.Logs, 1)
		assert.Equal(t, 3, page.Pagination.TotalPages)
		assert.True(t, page.Pagination.HasNext)
		assert.True(t, page.Pagination.HasPrev)
	})

	t.Run("LogsBadQuery", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/access-logs/logs?page=two", "", token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Stats", func(t *testing.T) {
		ts.logs.On("Stats", mock.Anything).Return(&models.AccessStats{
			TotalVisits: 5,
			UniqueIPs:   2,
			DailyVisits: []models.DailyCount{{Day: "2024-05-01", Count: 5}},
			TopPaths:    []models.PathCount{{Path: "/api/projects", Count: 4}},
		}, nil).Once()

		rec := ts.do(t, http.MethodGet, "/api/access-logs/stats", "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(5), body["totalVisits"])
		assert.Equal(t, float64(2), body["uniqueIPs"])
	})

	t.Run("ClientIPIsPublic", func(t *testing.T) {
		ts.logs.On("RecordClientIP", mock.Anything, mock.MatchedBy(func(in services.ClientIPInput) bool {
			return in.IP == "198.51.100.7" && in.Path == "/projects/1"
		})).Return(&models.AccessLog{ID: 1, IP: "198.51.100.7", Method: services.ClientIPMethod}, nil).Once()

		rec := ts.do(t, http.MethodPost, "/api/access-logs/client-ip", `{"ip":"198.51.100.7","path":"/projects/1"}`, "")
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func TestAuthRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeBody[SessionResponse](t, rec)
	require.NotEmpty(t, session.Token)
	assert.InDelta(t, 2*60*60, session.RemainingSeconds, 5)

	rec = ts.do(t, http.MethodGet, "/api/auth/session", "", session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[SessionResponse](t, rec).Token)
}

func TestAuthDisabledWithoutPassword(t *testing.T) {
	ts := newTestServer(t)
	disabled := services.NewAuthService(config.AuthConfig{JWTSecret: "test-secret"})
	ts.handler = newRouter(Dependencies{
		DB:         fakePinger{},
		Projects:   ts.projects,
		AccessLogs: ts.logs,
		Auth:       disabled,
		Blobs:      ts.blobs,
	}, withConfig(config.Load(nil)))

	token := ts.token(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"`+testPassword+`"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodDelete, "/api/projects/1", "", token).Code)
}

func TestAccessLogMiddlewareRecordsEveryResponse(t *testing.T) {
	ts := newTestServer(t)
	ts.projects.On("Get", mock.Anything, int64(1)).Return(&models.Project{ID: 1}, nil)
	ts.projects.On("Get", mock.Anything, int64(2)).Return(nil, errs.NewNotFound("project"))

	req := httptest.NewRequest(http.MethodGet, "/api/projects/1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Referer", "https://apol.site/")
	ts.handler.ServeHTTP(httptest.NewRecorder(), req)

	ts.do(t, http.MethodGet, "/api/projects/2", "", "")
	ts.do(t, http.MethodDelete, "/api/projects/2", "", "")
	ts.do(t, http.MethodGet, "/healthz", "", "")

	entries := ts.recorder.all()
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "203.0.113.5", first.IP)
	assert.Equal(t, "test-agent", first.UserAgent)
	require.NotNil(t, first.Referrer)
	assert.Equal(t, "https://apol.site/", *first.Referrer)
	assert.Equal(t, "/api/projects/1", first.Path)
	assert.Equal(t, http.MethodGet, first.Method)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	assert.Equal(t, http.StatusNotFound, entries[1].StatusCode)
	assert.Equal(t, http.MethodDelete, entries[2].Method)
	assert.Equal(t, http.StatusUnauthorized, entries[2].StatusCode)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.ResponseTime, int64(0))
	}
}

func TestAccessLogMiddlewareCleansEntries(t *testing.T) {
	ts := newTestServer(t)

	ts.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/%ff", nil))
	ts.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("VERSION-CONTROL", "/api/projects", nil))
	ts.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("%ED%94%84", 300), nil))

	entries := ts.recorder.all()
	require.Len(t, entries, 3)
	assert.True(t, utf8.ValidString(entries[0].Path))
	assert.Equal(t, "/\uFFFD", entries[0].Path)
	assert.Equal(t, "VERSION-CO", entries[1].Method)
	assert.LessOrEqual(t, len(entries[1].Method), models.MaxMethodLength)
	assert.True(t, utf8.ValidString(entries[2].Path))
	assert.Equal(t, models.MaxPathLength, utf8.RuneCountInString(entries[2].Path))
}

func TestPanicsBecome500(t *testing.T) {
	ts := newTestServer(t)
	ts.projects.On("List", mock.Anything).Run(func(mock.Arguments) { panic("nil map") }).Return(nil, nil)

	rec := ts.do(t, http.MethodGet, "/api/projects", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nil map")

	entries := ts.recorder.all()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusInternalServerError, entries[0].StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Database)

	rec = ts.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfolio_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestHealthDegraded(t *testing.T) {
	ts := newTestServer(t)
	ts.handler = newRouter(Dependencies{
		DB:         fakePinger{err: errors.New("connection refused")},
		Projects:   ts.projects,
		AccessLogs: ts.logs,
		Auth:       ts.auth,
		Blobs:      ts.blobs,
	}, withConfig(config.Load(nil)))

	rec := ts.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://apol.site")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://apol.site", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadsAreServed(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "/uploads", 1<<20)
	require.NoError(t, err)

	ts := newTestServer(t)
	ts.handler = newRouter(Dependencies{
		DB:         fakePinger{},
		Projects:   ts.projects,
		AccessLogs: ts.logs,
		Auth:       ts.auth,
		Blobs:      store,
		UploadsDir: dir,
	}, withConfig(config.Load(nil)))

	body, contentType := multipartBody(t, "image", "dot.png", []byte("\x89PNG\r\n\x1a\n0000"))
	req := httptest.NewRequest(http.MethodPost, "/api/projects/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+ts.token(t))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	url := decodeBody[UploadResponse](t, rec).URL
	rec = ts.do(t, http.MethodGet, url, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG\r\n\x1a\n0000", rec.Body.String())
}
