// Package period groups income into the chart views a user can switch between:
// the past day, week, month, quarter, year, or all time.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"glidemoney/internal/core"
)

type Period int

const (
	Day Period = iota
	Week
	Month
	Quarter
	Year
	All
)

var names = [...]string{"day", "week", "month", "quarter", "year", "all"}

func (p Period) String() string {
	if p < Day || p > All {
		return "period(" + strconv.Itoa(int(p)) + ")"
	}
	return names[p]
}

// Parse accepts the period names plus the short chart labels (1D, 1W, 1M, 3M, 1Y, ALL).
func Parse(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "1d":
		return Day, nil
	case "week", "1w":
		return Week, nil
	case "month", "1m":
		return Month, nil
	case "quarter", "3months", "3m":
		return Quarter, nil
	case "year", "1y":
		return Year, nil
	case "all":
		return All, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q", core.ErrInvalidInput, s)
}

// BucketKey returns the label a timestamp falls under for the given view.
//
//	Day     "14:00"  hour of day
//	Week    "Mon"    weekday
//	Month   "17"     day of month
//	Quarter "W3"     week of month, ceil((day + weekday) / 7)
//	Year    "Mar"    month
//	All     "2024"   year
func BucketKey(t time.Time, p Period) string {
	switch p {
	case Day:
		return strconv.Itoa(t.Hour()) + ":00"
	case Week:
		return t.Weekday().String()[:3]
	case Month:
		return strconv.Itoa(t.Day())
	case Quarter:
		return "W" + strconv.Itoa((t.Day()+int(t.Weekday())+6)/7)
	case Year:
		return t.Month().String()[:3]
	default:
		return strconv.Itoa(t.Year())
	}
}

// Range returns the inclusive window a view covers, ending at now.
func Range(now time.Time, p Period) (start, end time.Time) {
	switch p {
	case Day:
		return now.AddDate(0, 0, -1), now
	case Week:
		return now.AddDate(0, 0, -7), now
	case Month:
		return now.AddDate(0, -1, 0), now
	case Quarter:
		return now.AddDate(0, -3, 0), now
	case Year:
		return now.AddDate(-1, 0, 0), now
	default:
		return now.AddDate(-5, 0, 0), now
	}
}

func step(t time.Time, p Period) time.Time {
	switch p {
	case Day:
		return t.Add(time.Hour)
	case Week, Month:
		return t.AddDate(0, 0, 1)
	case Quarter:
		return t.AddDate(0, 0, 7)
	case Year:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

type Bucket struct {
	Key   string
	Total core.Money
}

// Buckets totals income per key of the view. Every key in the range is
// present, in chronological order of first appearance, even when it is zero.
// Items without a timestamp, outside the range, or whose key was not seeded
// are left out.
func Buckets(items []core.IncomeItem, p Period, now time.Time) []Bucket {
	start, end := Range(now, p)

	var out []Bucket
	index := make(map[string]int)
	for cur := start; !cur.After(end); cur = step(cur, p) {
		key := BucketKey(cur, p)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(out)
		out = append(out, Bucket{Key: key})
	}

	for _, it := range items {
		if it.ReceivedAt.IsZero() || it.ReceivedAt.Before(start) || it.ReceivedAt.After(end) {
			continue
		}
		i, ok := index[BucketKey(it.ReceivedAt, p)]
		if !ok {
			continue
		}
		out[i].Total = out[i].Total.Add(it.Gross)
	}
	return out
}

// Total sums the buckets.
func Total(buckets []Bucket) core.Money {
	var m core.Money
	for _, b := range buckets {
		m = m.Add(b.Total)
	}
	return m
}
