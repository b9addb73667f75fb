package cli

import (
	"context"
	"testing"

	"glidemoney/internal/config"
	"glidemoney/internal/export/memory"
	"glidemoney/internal/log"
	"glidemoney/internal/metrics"
)

func TestRateProviderResolvesYear(t *testing.T) {
	t.Run("pinned year", func(t *testing.T) {
		_, year, err := RateProvider(&config.Config{TaxYear: 2024})
		if err != nil {
			t.Fatalf("RateProvider() error = %v", err)
		}
		if year != 2024 {
			t.Errorf("RateProvider() year = %d, want 2024", year)
		}
	})

	t.Run("pinned year without a table", func(t *testing.T) {
		if _, _, err := RateProvider(&config.Config{TaxYear: 2031}); err == nil {
			t.Fatal("expected error for a year with no rate table")
		}
	})

	t.Run("zero picks newest table", func(t *testing.T) {
		p, year, err := RateProvider(&config.Config{RatesDir: t.TempDir()})
		if err != nil {
			t.Fatalf("RateProvider() error = %v", err)
		}
		if year != 2025 {
			t.Errorf("RateProvider() year = %d, want 2025", year)
		}
		if _, err := p.RateTable(year, "ON"); err != nil {
			t.Errorf("RateTable(%d) error = %v", year, err)
		}
	})
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentCLI)
	if logger.Component() != log.ComponentCLI {
		t.Errorf("SetupLogger() component = %q", logger.Component())
	}
}

func TestInitPlanCacheDisabled(t *testing.T) {
	c, closeFn := InitPlanCache(context.Background(), log.New(log.DefaultConfig()), &config.Config{})
	if c != nil {
		t.Error("InitPlanCache() should return nil cache without REDIS_ADDR")
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}
}

func TestInitExporterMemory(t *testing.T) {
	res, err := InitExporter(context.Background(), log.New(log.DefaultConfig()), &config.Config{ExportBackend: "memory"})
	if err != nil {
		t.Fatalf("InitExporter() error = %v", err)
	}
	if _, ok := res.Exporter.(*memory.Store); !ok {
		t.Errorf("InitExporter() exporter = %T", res.Exporter)
	}
}

func TestBuildPlannerWithoutOptionalDeps(t *testing.T) {
	rates, year, err := RateProvider(&config.Config{TaxYear: 2024})
	if err != nil {
		t.Fatal(err)
	}
	p := BuildPlanner(nil, rates, &config.Config{PostingBufferDays: 2}, year, PlannerDeps{Metrics: metrics.New()})
	if p == nil {
		t.Fatal("BuildPlanner() returned nil")
	}
}

func TestStartRateSweeperStops(t *testing.T) {
	rates, _, err := RateProvider(&config.Config{TaxYear: 2024})
	if err != nil {
		t.Fatal(err)
	}
	m := StartRateSweeper(log.New(log.DefaultConfig()), rates)
	m.Stop()
}
