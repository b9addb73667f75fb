package main

import (
	"github.com/spf13/cobra"

	"glidemoney/internal/cli"
	"glidemoney/internal/report"
	"glidemoney/internal/services"
)

var planExport bool

// planCmd runs one planning pass and prints the set-aside and card slices.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute this period's set-aside and card payment plan",
	Long: `Compute how much of this period's income to set aside and how to split the
rest across cards. Runs against the SQLite store are recorded so the worker
knows when the user was last planned; the plan is cached in Redis when
REDIS_ADDR is set.

Examples:
  glidemoney plan --snapshot me.yaml
  glidemoney plan --user alex --export
  glidemoney plan --user alex --as-of 2024-05-15 --format json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVar(&planExport, "export", false, "Export the result to EXPORT_BACKEND")
}

func runPlan(cmd *cobra.Command, args []string) error {
	a := current
	ctx := cmd.Context()

	var deps cli.PlannerDeps
	if a.snapshot == nil {
		c, closeCache := cli.InitPlanCache(ctx, a.logger, a.cfg)
		defer closeCache()
		deps.Cache = c
	}
	if planExport {
		res, err := cli.InitExporter(ctx, a.logger, a.cfg)
		if err != nil {
			return err
		}
		if res.Cleanup != nil {
			defer res.Cleanup()
		}
		deps.Exporter = res
	}

	p, err := a.planner(true, deps)
	if err != nil {
		return err
	}
	r, err := p.Run(ctx, a.user, a.now, services.TriggerCLI)
	if err != nil {
		return err
	}
	if isJSON() {
		return writeJSON(a.out, report.PlanOf(r, a.year))
	}
	writePlan(a.out, r, a.year)
	return nil
}
