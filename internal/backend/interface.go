// Package backend selects and builds the export destination for computed
// plans from application configuration.
package backend

import (
	"context"

	"glidemoney/internal/export"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ExporterResult contains the exporter and an optional cleanup function.
type ExporterResult struct {
	Exporter export.Exporter
	Cleanup  CleanupFunc
}

// Factory creates exporters based on configuration
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (*ExporterResult, error)
}

// Config holds configuration for exporter creation
type Config struct {
	Type ExportType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSetAsideSheetName  string
	GooglePlanSheetName      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	RatePerSecond            float64
}

// ExportType represents the kind of export destination
type ExportType string

const (
	SheetsExport ExportType = "sheets"
	MemoryExport ExportType = "memory"
)

// String implements fmt.Stringer
func (t ExportType) String() string {
	return string(t)
}

// IsValid returns true if the export type is known
func (t ExportType) IsValid() bool {
	switch t {
	case SheetsExport, MemoryExport:
		return true
	default:
		return false
	}
}
