package models

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

/*
Column Mismatch Report Usage:

Compares the live columns of every table against the columns the Go models map.

	portfolio schema-report

Example output:
=== COLUMN MISMATCH REPORT ===
--- Table: apol_schema.projects ---
Columns in database but not in model:
  - legacy_body

--- Table: apol_schema.access_logs ---
All columns are accounted for in the model.

=== SUMMARY ===
Total mismatched columns across all tables: 1
*/

// All returns one zero value of every persisted model.
func All() []any {
	return []any{&Project{}, &AccessLog{}}
}

// TableReport lists the drift between one table and its model.
type TableReport struct {
	Table       string
	Missing     bool     // table does not exist
	OnlyInDB    []string // columns the model does not map
	OnlyInModel []string // columns the migration never created
}

// Mismatches is the number of drifting columns in both directions.
func (r TableReport) Mismatches() int {
	return len(r.OnlyInDB) + len(r.OnlyInModel)
}

// ColumnMismatchReport inspects information_schema for each model table.
func ColumnMismatchReport(db *gorm.DB) ([]TableReport, error) {
	cache := &sync.Map{}
	var reports []TableReport

	for _, model := range All() {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}

		schemaName, tableName := splitTable(s.Table)
		report := TableReport{Table: s.Table}

		dbColumns, err := getTableColumns(db, schemaName, tableName)
		if err != nil {
			return nil, err
		}
		if dbColumns == nil {
			report.Missing = true
			reports = append(reports, report)
			continue
		}

		report.OnlyInDB = difference(dbColumns, s.DBNames)
		report.OnlyInModel = difference(s.DBNames, dbColumns)
		reports = append(reports, report)
	}

	return reports, nil
}

// WriteColumnMismatchReport renders reports in the same layout the CLI prints.
func WriteColumnMismatchReport(w io.Writer, reports []TableReport) int {
	fmt.Fprintln(w, "=== COLUMN MISMATCH REPORT ===")

	total := 0
	for _, r := range reports {
		fmt.Fprintf(w, "\n--- Table: %s ---\n", r.Table)
		if r.Missing {
			fmt.Fprintln(w, "Table does not exist yet (run `portfolio migrate up`)")
			continue
		}
		if len(r.OnlyInDB) > 0 {
			fmt.Fprintln(w, "Columns in database but not in model:")
			for _, col := range r.OnlyInDB {
				fmt.Fprintf(w, "  - %s\n", col)
			}
		}
		if len(r.OnlyInModel) > 0 {
			fmt.Fprintln(w, "Columns in model but not in database:")
			for _, col := range r.OnlyInModel {
				fmt.Fprintf(w, "  - %s\n", col)
			}
		}
		if r.Mismatches() == 0 {
			fmt.Fprintln(w, "All columns are accounted for in the model.")
		}
		total += r.Mismatches()
	}

	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Total mismatched columns across all tables: %d\n", total)
	return total
}

// getTableColumns returns nil when the table does not exist.
func getTableColumns(db *gorm.DB, schemaName, tableName string) ([]string, error) {
	var columns []string
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	if err := db.Raw(query, schemaName, tableName).Scan(&columns).Error; err != nil {
		return nil, fmt.Errorf("error querying columns for table %s.%s: %w", schemaName, tableName, err)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	return columns, nil
}

func splitTable(qualified string) (string, string) {
	if schemaName, table, ok := strings.Cut(qualified, "."); ok {
		return schemaName, table
	}
	return "public", qualified
}

// difference returns the members of a missing from b, sorted.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}

	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
