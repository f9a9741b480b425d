package models

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryProject.Valid())
	assert.True(t, CategoryStudy.Valid())
	assert.True(t, CategoryRecord.Valid())
	assert.False(t, Category("blog").Valid())
	assert.False(t, Category("").Valid())
}

func TestContentFileName(t *testing.T) {
	assert.Equal(t, "project-12.md", ContentFileName(12))
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		limit      int
		total      int64
		totalPages int
		hasNext    bool
		hasPrev    bool
	}{
		{name: "empty", page: 1, limit: 50, total: 0, totalPages: 0},
		{name: "single page", page: 1, limit: 50, total: 12, totalPages: 1},
		{name: "exact fit", page: 1, limit: 10, total: 10, totalPages: 1},
		{name: "first of many", page: 1, limit: 10, total: 25, totalPages: 3, hasNext: true},
		{name: "middle", page: 2, limit: 10, total: 25, totalPages: 3, hasNext: true, hasPrev: true},
		{name: "last", page: 3, limit: 10, total: 25, totalPages: 3, hasPrev: true},
		{name: "past the end", page: 5, limit: 10, total: 25, totalPages: 3, hasPrev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.totalPages, p.TotalPages)
			assert.Equal(t, tt.hasNext, p.HasNext)
			assert.Equal(t, tt.hasPrev, p.HasPrev)
			assert.Equal(t, tt.total, p.Total)
		})
	}
}

func TestWriteColumnMismatchReport(t *testing.T) {
	var buf bytes.Buffer
	total := WriteColumnMismatchReport(&buf, []TableReport{
		{Table: "apol_schema.projects", OnlyInDB: []string{"legacy_body"}},
		{Table: "apol_schema.access_logs"},
		{Table: "apol_schema.other", Missing: true},
	})

	assert.Equal(t, 1, total)
	out := buf.String()
	assert.Contains(t, out, "  - legacy_body")
	assert.Contains(t, out, "All columns are accounted for in the model.")
	assert.Contains(t, out, "Table does not exist yet")
	assert.Contains(t, out, "Total mismatched columns across all tables: 1")
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, difference([]string{"c", "b", "a"}, []string{"b"}))
	assert.Nil(t, difference([]string{"a"}, []string{"a"}))
}

func TestAccessLogClean(t *testing.T) {
	ref := "https://example.com/\xff"
	entry := AccessLog{
		Path:      "/" + strings.Repeat("프", 300),
		Method:    "VERYLONGMETHOD",
		UserAgent: "agent\xfe",
		Referrer:  &ref,
	}
	entry.Clean()

	assert.True(t, utf8.ValidString(entry.Path))
	assert.Equal(t, MaxPathLength, utf8.RuneCountInString(entry.Path))
	assert.Equal(t, "VERYLONGME", entry.Method)
	assert.Equal(t, "agent\uFFFD", entry.UserAgent)
	assert.Equal(t, "https://example.com/\uFFFD", *entry.Referrer)
	assert.Equal(t, "https://example.com/\xff", ref)

	short := AccessLog{Path: "/projects/1", Method: "GET"}
	short.Clean()
	assert.Equal(t, "/projects/1", short.Path)
	assert.Equal(t, "GET", short.Method)
	assert.Nil(t, short.Referrer)
}
