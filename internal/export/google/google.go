package google

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"glidemoney/internal/core"
	"glidemoney/internal/export"
	"glidemoney/internal/log"
)

const dateLayout = "2006-01-02"

var _ export.Exporter = (*Client)(nil)

// Options configures the Sheets exporter. Sheet names are base names; the
// export year is prefixed automatically.
type Options struct {
	SpreadsheetID      string
	SetAsideSheet      string
	PlanSheet          string
	ServiceAccountJSON string
	ServiceAccountFile string
	RatePerSecond      float64
}

// Client appends set-aside and payment-plan rows to a spreadsheet. Writes are
// rate limited and go through a circuit breaker so a failing API does not
// stall every planning run.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	setAsideSheet string
	planSheet     string
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		setAsideSheet: cmp.Or(opts.SetAsideSheet, "SetAsides"),
		planSheet:     cmp.Or(opts.PlanSheet, "GlideGuard"),
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "sheets-export",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither option is set.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		log.FieldComponent, log.ComponentExport,
		"credentials_size", len(credentialsJSON))

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ExportSetAsides(ctx context.Context, userID string, asOf time.Time, s core.SetAsides) (string, error) {
	sheet := yearPrefixedName(c.setAsideSheet, asOf.Year())
	return c.append(ctx, sheet, "A:F", [][]any{setAsideRow(userID, asOf, s)})
}

func (c *Client) ExportPlan(ctx context.Context, userID string, p core.Plan) (string, error) {
	if p.Empty() {
		return "", nil
	}
	sheet := yearPrefixedName(c.planSheet, p.AsOf.Year())
	return c.append(ctx, sheet, "A:G", planRows(userID, uuid.NewString(), p))
}

func (c *Client) append(ctx context.Context, sheet, cols string, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	rng := fmt.Sprintf("%s!%s", sheet, cols)
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			return resp.Updates.UpdatedRange, nil
		}
		return rng, nil
	})
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	ref := out.(string)
	slog.DebugContext(ctx, "Rows exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldExportRef, ref,
		"rows", len(rows))
	return ref, nil
}

func setAsideRow(userID string, asOf time.Time, s core.SetAsides) []any {
	return []any{
		asOf.Format(dateLayout),
		userID,
		s.CPP.Float(),
		s.IncomeTax.Float(),
		s.HSTRemit.Float(),
		s.Total.Float(),
	}
}

// planRows renders one row per slice; batch ties the rows of one run together.
func planRows(userID, batch string, p core.Plan) [][]any {
	rows := make([][]any, 0, len(p.Slices))
	for _, s := range p.Slices {
		rows = append(rows, []any{
			p.AsOf.Format(dateLayout),
			userID,
			cmp.Or(s.CardName, s.CardID),
			s.Amount.Float(),
			s.SafeBy.Format(dateLayout),
			s.Rationale,
			batch,
		})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
