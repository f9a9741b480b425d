package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Column limits of the access_logs table.
const (
	MaxPathLength   = 255
	MaxMethodLength = 10
)

// AccessLog is one recorded HTTP response. Rows are only ever inserted.
type AccessLog struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index:idx_access_logs_timestamp"`
	IP           string    `json:"ip" gorm:"type:varchar(45);not null;index:idx_access_logs_ip"`
	UserAgent    string    `json:"user_agent" gorm:"type:text;not null"`
	Referrer     *string   `json:"referrer,omitempty" gorm:"type:text"`
	Path         string    `json:"path" gorm:"type:varchar(255);not null;index:idx_access_logs_path"`
	Method       string    `json:"method" gorm:"type:varchar(10);not null"`
	StatusCode   int       `json:"status_code" gorm:"not null"`
	ResponseTime int64     `json:"response_time" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (AccessLog) TableName() string {
	return Schema + ".access_logs"
}

// Clean makes the entry storable: text fields become valid UTF-8 and the path and method are cut
// to their column widths.
func (l *AccessLog) Clean() {
	l.Path = clip(l.Path, MaxPathLength)
	l.Method = clip(l.Method, MaxMethodLength)
	l.UserAgent = strings.ToValidUTF8(l.UserAgent, "\uFFFD")
	if l.Referrer != nil {
		ref := strings.ToValidUTF8(*l.Referrer, "\uFFFD")
		l.Referrer = &ref
	}
}

// clip returns s as valid UTF-8 holding at most n characters.
func clip(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// PathCount is one row of the top-paths aggregate.
type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// DailyCount is the number of visits recorded on one calendar day (YYYY-MM-DD).
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// AccessStats is the dashboard aggregate over all access logs.
type AccessStats struct {
	TotalVisits int64        `json:"totalVisits"`
	UniqueIPs   int64        `json:"uniqueIPs"`
	TodayVisits int64        `json:"todayVisits"`
	DailyVisits []DailyCount `json:"dailyVisits"`
	TopPaths    []PathCount  `json:"topPaths"`
}

// Pagination describes a page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination derives the page metadata for total rows split into pages of limit.
// page and limit are expected to be at least 1.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
