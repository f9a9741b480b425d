// Package client is the typed data client the portfolio frontend and the CLI use to talk to the API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpupo63/portfolio-cms/models"
)

// DefaultBaseURL is used when Client.BaseURL is empty.
const DefaultBaseURL = "http://localhost:4000/api"

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token is sent as a bearer token when set. Login fills it in.
	Token string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type CreateProjectRequest struct {
	Title     string          `json:"title"`
	Summary   string          `json:"summary,omitempty"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Duration  string          `json:"duration,omitempty"`
	Category  models.Category `json:"category,omitempty"`
}

// ProjectUpdate sends only the fields that are set.
type ProjectUpdate struct {
	Title     *string          `json:"title,omitempty"`
	Summary   *string          `json:"summary,omitempty"`
	Content   *string          `json:"content,omitempty"`
	Tags      *[]string        `json:"tags,omitempty"`
	Thumbnail *string          `json:"thumbnail,omitempty"`
	Duration  *string          `json:"duration,omitempty"`
	Category  *models.Category `json:"category,omitempty"`
}

type LogPage struct {
	Logs       []models.AccessLog `json:"logs"`
	Pagination models.Pagination  `json:"pagination"`
}

type Session struct {
	Token            string `json:"token"`
	ExpiresAt        string `json:"expiresAt"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

type ClientIPReport struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Path      string `json:"path,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &projects)
	return projects, err
}

func (c *Client) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	if err := c.doJSON(ctx, http.MethodGet, projectPath(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetContent returns the raw markdown body of a project.
func (c *Client) GetContent(ctx context.Context, id int64) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, projectPath(id)+"/content", nil, "")
	if err != nil {
		return "", err
	}
	body, err := c.send(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) CreateProject(ctx context.Context, in CreateProjectRequest) (*models.Project, error) {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	var project models.Project
	if err := c.doJSON(ctx, http.MethodPost, "/projects", in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) UpdateProject(ctx context.Context, id int64, in ProjectUpdate) (*models.Project, error) {
	var project models.Project
	if err := c.doJSON(ctx, http.MethodPut, projectPath(id), in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject returns the server's confirmation message.
func (c *Client) DeleteProject(ctx context.Context, id int64) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, projectPath(id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UploadImage sends r as the image form field and returns the public URL of the stored file.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/projects/upload", &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return resp.URL, nil
}

// Login exchanges the admin password for a session and keeps its token on the client.
func (c *Client) Login(ctx context.Context, password string) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{"password": password}, &session); err != nil {
		return nil, err
	}
	c.Token = session.Token
	return &session, nil
}

// AccessLogs fetches one page of the access log. Zero page or limit leaves the server default.
func (c *Client) AccessLogs(ctx context.Context, page, limit int) (*LogPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/access-logs/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var logs LogPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

func (c *Client) Stats(ctx context.Context) (*models.AccessStats, error) {
	var stats models.AccessStats
	if err := c.doJSON(ctx, http.MethodGet, "/access-logs/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) ReportClientIP(ctx context.Context, in ClientIPReport) error {
	return c.doJSON(ctx, http.MethodPost, "/access-logs/client-ip", in, nil)
}

func projectPath(id int64) string {
	return "/projects/" + strconv.FormatInt(id, 10)
}

// doJSON sends in as a JSON body (when non-nil) and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	respBody, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// send executes req and returns the body of a 2xx response.
func (c *Client) send(req *http.Request) ([]byte, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP error! status: %d", resp.StatusCode),
		}
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
			apiErr.Message = errorResp.Error
		}
		return nil, apiErr
	}

	return body, nil
}
