package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"glidemoney/internal/cli"
	"glidemoney/internal/glide"
	"glidemoney/internal/report"
	"glidemoney/internal/services"
)

var snoozeLastPay string

// rankCmd lists cards in priority order with the top action marked.
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "List cards by payment priority",
	Long: `List every card by priority: cards over target first, then the closest
statement close, then the highest utilization. The top action is marked
with "*" and the rest of the action queue with "-".

Examples:
  glidemoney rank --snapshot me.yaml
  glidemoney rank --user alex --format json`,
	RunE: runRank,
}

// snoozeCmd suggests when to be reminded about each planned payment.
var snoozeCmd = &cobra.Command{
	Use:   "snooze",
	Short: "Suggest reminder times for planned payments",
	Long: `For each planned payment, suggest a reminder on the next money day, or one
day before the safe-by date when the next money day would be too late.

Example:
  glidemoney snooze --snapshot me.yaml --last-pay 2024-05-10`,
	RunE: runSnooze,
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(snoozeCmd)
	snoozeCmd.Flags().StringVar(&snoozeLastPay, "last-pay", "", "Date of the last pay day (required)")
}

func runRank(cmd *cobra.Command, args []string) error {
	a := current
	p, err := a.planner(false, cli.PlannerDeps{})
	if err != nil {
		return err
	}
	r, err := p.Run(cmd.Context(), a.user, a.now, services.TriggerCLI)
	if err != nil {
		return err
	}
	cards := report.Cards(r, a.now)
	if isJSON() {
		return writeJSON(a.out, cards)
	}
	if len(cards) == 0 {
		fmt.Fprintln(a.out, "No cards on file.")
		return nil
	}
	writeCards(a.out, cards)
	if !r.HasTop {
		fmt.Fprintln(a.out, "\nAll cards are at or under target.")
	}
	return nil
}

func runSnooze(cmd *cobra.Command, args []string) error {
	a := current
	if snoozeLastPay == "" {
		return errors.New("--last-pay is required")
	}
	last, err := parseAsOf(snoozeLastPay, a.now)
	if err != nil {
		return fmt.Errorf("invalid --last-pay: %w", err)
	}

	p, err := a.planner(false, cli.PlannerDeps{})
	if err != nil {
		return err
	}
	r, err := p.Run(cmd.Context(), a.user, a.now, services.TriggerCLI)
	if err != nil {
		return err
	}

	next := glide.NextMoneyDay(last, a.now, r.Snapshot.Profile.Cadence)
	views := make([]snoozeView, 0, len(r.Plan.Slices))
	for _, s := range r.Plan.Slices {
		sn := glide.SmartSnooze(next, s.SafeBy)
		views = append(views, snoozeView{
			CardID:   s.CardID,
			SafeBy:   s.SafeBy.Format(dateLayout),
			NextPay:  next.Format(dateLayout),
			RemindAt: sn.RemindAt.Format(dateLayout),
			Note:     sn.Note,
		})
	}
	if isJSON() {
		return writeJSON(a.out, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(a.out, "No payments to snooze.")
		return nil
	}
	tw := newTable(a.out)
	fmt.Fprintln(tw, "CARD\tSAFE BY\tREMIND\tNOTE")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.CardID, v.SafeBy, v.RemindAt, v.Note)
	}
	return tw.Flush()
}
