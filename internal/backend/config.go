package backend

import (
	"fmt"

	"glidemoney/internal/config"
)

// FromAppConfig converts the application config to exporter config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	exportType := ExportType(appConfig.ExportBackend)
	if !exportType.IsValid() {
		return Config{}, fmt.Errorf("invalid export backend in config: %s", appConfig.ExportBackend)
	}

	return Config{
		Type: exportType,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSetAsideSheetName:  appConfig.GoogleSetAsideSheetName,
		GooglePlanSheetName:      appConfig.GooglePlanSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		RatePerSecond:            appConfig.ExportRatePerSecond,
	}, nil
}

// Validate validates the exporter configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid export type: %s", c.Type)
	}

	switch c.Type {
	case SheetsExport:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets export")
		}
		if c.GoogleSetAsideSheetName == "" || c.GooglePlanSheetName == "" {
			return fmt.Errorf("Google sheet names are required for sheets export")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets export")
		}

	case MemoryExport:
		// Nothing to configure
	}

	return nil
}

// GetExportTypes returns all valid export types
func GetExportTypes() []ExportType {
	return []ExportType{MemoryExport, SheetsExport}
}

// GetExportTypeStrings returns all valid export type strings
func GetExportTypeStrings() []string {
	types := GetExportTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
