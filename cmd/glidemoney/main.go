package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glidemoney/internal/adapters"
	"glidemoney/internal/cli"
	"glidemoney/internal/config"
	"glidemoney/internal/log"
	"glidemoney/internal/services"
	"glidemoney/internal/storage"
	"glidemoney/internal/tax"
)

var (
	snapshotPath string
	userFlag     string
	asOfFlag     string
	formatFlag   string
)

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	rates    *tax.FileProvider
	year     int
	source   services.SnapshotSource
	snapshot *adapters.SnapshotFile
	repo     *storage.SQLiteRepository
	user     string
	now      time.Time
	out      io.Writer
}

var current *app

// rootCmd is the base command for the glidemoney CLI
var rootCmd = &cobra.Command{
	Use:   "glidemoney",
	Short: "Tax set-asides and card payment plans for gig income",
	Long: `glidemoney works out how much of each pay period to hold back for CPP,
income tax and HST, then splits what is left across credit cards so each
one glides toward its target utilization before the statement closes.

Inputs come from a YAML snapshot file (--snapshot) or the SQLite store
configured by SQLITE_DB_PATH.

Example usage:
  glidemoney plan --snapshot me.yaml
  glidemoney setaside --income 680 --province ON
  glidemoney rank --user alex --format json`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil && current.repo != nil {
			current.repo.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "YAML snapshot file to read instead of the SQLite store")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id (defaults to the snapshot's user)")
	rootCmd.PersistentFlags().StringVar(&asOfFlag, "as-of", "", "Plan as of this date (2006-01-02 or RFC 3339, default now)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "table", "Output format: table, json")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentCLI)

	switch strings.ToLower(formatFlag) {
	case "table", "json":
	default:
		return fmt.Errorf("unknown format %q: must be table or json", formatFlag)
	}

	now, err := parseAsOf(asOfFlag, time.Now())
	if err != nil {
		return err
	}

	rates, year, err := cli.RateProvider(cfg)
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: logger, rates: rates, year: year, now: now, out: cmd.OutOrStdout(), user: userFlag}
	if snapshotPath != "" {
		f, err := adapters.LoadSnapshotFile(snapshotPath)
		if err != nil {
			return err
		}
		a.snapshot, a.source = f, f
		if a.user == "" {
			a.user = f.User()
		}
	}

	cmd.SetContext(log.NewContext(cmd.Context(), logger))
	current = a
	return nil
}

// store opens the SQLite store on first use.
func (a *app) store() *storage.SQLiteRepository {
	if a.repo == nil {
		a.repo = cli.InitSQLite(a.logger, a.cfg.SQLiteDBPath)
	}
	return a.repo
}

// input returns the snapshot file when one was given, the SQLite store
// otherwise. It fails when no user was named on the command line or in the
// snapshot.
func (a *app) input() (services.SnapshotSource, error) {
	if a.user == "" {
		return nil, errors.New("missing user: --user is required without --snapshot")
	}
	if a.source == nil {
		a.source = a.store()
	}
	return a.source, nil
}

// planner builds a planner over the current input. Runs are recorded only
// when record is set and the input is the SQLite store.
func (a *app) planner(record bool, deps cli.PlannerDeps) (*services.Planner, error) {
	source, err := a.input()
	if err != nil {
		return nil, err
	}
	if record && a.snapshot == nil {
		deps.Runs = a.repo
	}
	return cli.BuildPlanner(source, a.rates, a.cfg, a.year, deps), nil
}

func parseAsOf(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --as-of %q: use 2006-01-02 or RFC 3339", s)
}
