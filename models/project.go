package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Schema is the postgres schema holding every table of the application.
const Schema = "apol_schema"

// Category groups projects on the portfolio pages.
type Category string

const (
	CategoryProject Category = "project"
	CategoryStudy   Category = "study"
	CategoryRecord  Category = "record"
)

// Categories lists the accepted categories in display order.
var Categories = []Category{CategoryProject, CategoryStudy, CategoryRecord}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Project represents a portfolio entry. The markdown body is never stored on the row;
// ContentPath names the file holding it.
type Project struct {
	ID          int64                       `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string                      `json:"title" gorm:"type:varchar(255);not null"`
	Summary     string                      `json:"summary" gorm:"type:text;not null;default:''"`
	Tags        datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb;not null;default:'[]'"`
	Thumbnail   string                      `json:"thumbnail,omitempty" gorm:"type:varchar(1024);not null;default:''"`
	Duration    string                      `json:"duration,omitempty" gorm:"type:text;not null;default:''"`
	Category    Category                    `json:"category" gorm:"type:varchar(50);not null;default:'project'"`
	ContentPath string                      `json:"contentPath" gorm:"column:content_path;type:varchar(255);not null;default:''"`
	CreatedAt   time.Time                   `json:"createdAt" gorm:"not null"`
	UpdatedAt   time.Time                   `json:"updatedAt" gorm:"not null"`
}

func (Project) TableName() string {
	return Schema + ".projects"
}

// ContentFileName is the markdown file name derived from a project id.
func ContentFileName(id int64) string {
	return fmt.Sprintf("project-%d.md", id)
}
