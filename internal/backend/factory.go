package backend

import (
	"context"
	"fmt"

	gsheet "glidemoney/internal/export/google"
	"glidemoney/internal/export/memory"
	"glidemoney/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new exporter factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentExport),
	}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsExport:
		return f.createSheetsExporter(ctx, config)
	case MemoryExport:
		return f.createMemoryExporter()
	default:
		return nil, fmt.Errorf("unsupported export type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SetAsideSheet:      config.GoogleSetAsideSheetName,
		PlanSheet:          config.GooglePlanSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		RatePerSecond:      config.RatePerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter",
		"set_aside_sheet", config.GoogleSetAsideSheetName,
		"plan_sheet", config.GooglePlanSheetName)

	return &ExporterResult{Exporter: cli}, nil
}

func (f *DefaultFactory) createMemoryExporter() (*ExporterResult, error) {
	f.logger.Info("Initialized memory exporter")
	return &ExporterResult{Exporter: memory.New()}, nil
}
