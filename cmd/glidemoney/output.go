package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"glidemoney/internal/core"
	"glidemoney/internal/report"
	"glidemoney/internal/services"
	"glidemoney/internal/tax"
)

const dateLayout = report.DateLayout

type snoozeView struct {
	CardID   string `json:"card_id"`
	SafeBy   string `json:"safe_by"`
	NextPay  string `json:"next_money_day"`
	RemindAt string `json:"remind_at"`
	Note     string `json:"note"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isJSON() bool {
	return strings.EqualFold(formatFlag, "json")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeSetAsides(w io.Writer, title string, s core.SetAsides, income core.Money) {
	fmt.Fprintf(w, "%s\n", title)
	tw := newTable(w)
	fmt.Fprintf(tw, "  CPP\t%s\n", s.CPP)
	fmt.Fprintf(tw, "  Income tax\t%s\n", s.IncomeTax)
	fmt.Fprintf(tw, "  HST remit\t%s\n", s.HSTRemit)
	if income.Cents > 0 {
		fmt.Fprintf(tw, "  Total\t%s\t(%d%% of %s)\n", s.Total, tax.Percent(s.Total, income), income)
	} else {
		fmt.Fprintf(tw, "  Total\t%s\n", s.Total)
	}
	tw.Flush()
}

func writePace(w io.Writer, p tax.Pace) {
	status := "not required yet"
	if p.MustRegister {
		status = "registration required"
	}
	fmt.Fprintf(w, "HST threshold: %s of %s (%d%%), %s\n", p.YTDTaxable, p.Threshold, p.Percent, status)
}

func writePlan(w io.Writer, r *services.PlanResult, year int) {
	fmt.Fprintf(w, "Plan for %s as of %s (%d %s rates)\n\n", r.UserID, r.Plan.AsOf.Format(dateLayout), year, r.Snapshot.Profile.Jurisdiction)
	fmt.Fprintf(w, "Income this period: %s\n", r.Snapshot.PeriodIncome)
	writeSetAsides(w, "Set aside:", r.Plan.SetAsides, r.Snapshot.PeriodIncome)
	fmt.Fprintf(w, "Bills before next income: %s\n", core.TotalBills(r.Snapshot.Bills))
	fmt.Fprintf(w, "Available for cards: %s\n\n", r.Plan.AvailableBudget)

	if r.Plan.Empty() {
		fmt.Fprintln(w, "No card payments needed this period.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "CARD\tAMOUNT\tSAFE BY\tRATIONALE")
		for _, s := range r.Plan.Slices {
			name := s.CardName
			if name == "" {
				name = s.CardID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, s.Amount, s.SafeBy.Format(dateLayout), s.Rationale)
		}
		tw.Flush()
	}
	fmt.Fprintln(w)
	writeSetAsides(w, "Year to date liability:", r.YearToDate, core.Money{})
	writePace(w, r.HSTPace)
}

func writeCards(w io.Writer, cards []report.Card) {
	tw := newTable(w)
	fmt.Fprintln(tw, "\tCARD\tSTATUS\tUTIL\tTARGET\tGAP\tPAY\tCLOSES IN")
	for _, c := range cards {
		marker := ""
		switch {
		case c.Top:
			marker = "*"
		case c.Queued:
			marker = "-"
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		closes := "unknown"
		if c.DaysToClose != nil {
			closes = fmt.Sprintf("%dd", *c.DaysToClose)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%d%%\t%s\t%s\t%s\n", marker, name, c.Status, c.Utilization, c.Target,
			core.Dollars(c.Gap), core.Dollars(c.Pay), closes)
	}
	tw.Flush()
}
