package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"glidemoney/internal/period"
	"glidemoney/internal/report"
)

var bucketsPeriod string

// bucketsCmd totals income per bucket of a chart view.
var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Total income per hour, day, week or month",
	Long: `Total income over a trailing window, bucketed the way the income chart
shows it: day (per hour), week (per weekday), month (per day), quarter
(per week of month), year (per month) or all (per year).

Example:
  glidemoney buckets --snapshot me.yaml --period month`,
	RunE: runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
	bucketsCmd.Flags().StringVar(&bucketsPeriod, "period", "week", "View: day, week, month, quarter, year, all")
}

func runBuckets(cmd *cobra.Command, args []string) error {
	a := current
	p, err := period.Parse(bucketsPeriod)
	if err != nil {
		return err
	}
	source, err := a.input()
	if err != nil {
		return err
	}

	start, end := period.Range(a.now, p)
	// Range is inclusive; the store windows are half-open.
	items, err := source.ListIncome(cmd.Context(), a.user, start, end.Add(time.Second))
	if err != nil {
		return err
	}
	buckets := period.Buckets(items, p, a.now)

	if isJSON() {
		return writeJSON(a.out, struct {
			Period  string          `json:"period"`
			Total   float64         `json:"total"`
			Buckets []report.Bucket `json:"buckets"`
		}{p.String(), period.Total(buckets).Float(), report.Buckets(buckets)})
	}
	tw := newTable(a.out)
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%s\n", b.Key, b.Total)
	}
	fmt.Fprintf(tw, "TOTAL\t%s\n", period.Total(buckets))
	return tw.Flush()
}
