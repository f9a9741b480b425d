package services

import (
	"context"
	"math"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
	// MaxPage keeps the row offset of a page within an int.
	MaxPage = math.MaxInt / MaxPageLimit

	statsDays = 7
	statsTop  = 10

	// ClientIPMethod marks rows reported by the frontend rather than observed by the server.
	ClientIPMethod = "CLIENT"
)

// AccessLogStore reads and writes access logs. *database.AccessLogRepo satisfies it.
type AccessLogStore interface {
	AccessLogWriter
	FindPage(ctx context.Context, page, limit int) ([]models.AccessLog, int64, error)
	Stats(ctx context.Context, days, top int) (*models.AccessStats, error)
}

type AccessLogPage struct {
	Logs       []models.AccessLog `json:"logs"`
	Pagination models.Pagination  `json:"pagination"`
}

// ClientIPInput is what the frontend reports about a visitor.
type ClientIPInput struct {
	IP        string `json:"ip" validate:"required,ip"`
	UserAgent string `json:"user_agent"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
}

type AccessLogService struct {
	store    AccessLogStore
	validate *validator.Validate
	now      func() time.Time
}

func NewAccessLogService(store AccessLogStore) *AccessLogService {
	return &AccessLogService{
		store:    store,
		validate: newValidator(),
		now:      time.Now,
	}
}

// NormalizePage applies the listing defaults and bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// List returns one page of logs, newest first.
func (s *AccessLogService) List(ctx context.Context, page, limit int) (*AccessLogPage, error) {
	page, limit = NormalizePage(page, limit)

	logs, total, err := s.store.FindPage(ctx, page, limit)
	if err != nil {
		return nil, errs.NewDatabaseError("list", "access logs", err)
	}
	return &AccessLogPage{
		Logs:       logs,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// Stats aggregates visits over the last week and the ten most visited paths.
func (s *AccessLogService) Stats(ctx context.Context) (*models.AccessStats, error) {
	stats, err := s.store.Stats(ctx, statsDays, statsTop)
	if err != nil {
		return nil, errs.NewDatabaseError("aggregate", "access logs", err)
	}
	return stats, nil
}

// RecordClientIP stores a visitor IP reported by the frontend.
func (s *AccessLogService) RecordClientIP(ctx context.Context, in ClientIPInput) (*models.AccessLog, error) {
	in.IP = strings.TrimSpace(in.IP)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	path := in.Path
	if path == "" {
		path = "/"
	}

	entry := &models.AccessLog{
		Timestamp:  s.now(),
		IP:         net.ParseIP(in.IP).String(),
		UserAgent:  in.UserAgent,
		Path:       path,
		Method:     ClientIPMethod,
		StatusCode: 200,
	}
	if in.Referrer != "" {
		entry.Referrer = &in.Referrer
	}
	entry.Clean()

	if err := s.store.Add(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("record", "client ip", err)
	}
	return entry, nil
}
