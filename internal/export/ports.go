// Package export holds the ports for output consumers of computed plans.
// Exporters receive results after a run; they never feed back into one.
package export

import (
	"context"
	"time"

	"glidemoney/internal/core"
)

type (
	SetAsideExporter interface {
		ExportSetAsides(ctx context.Context, userID string, asOf time.Time, s core.SetAsides) (ref string, err error)
	}

	PlanExporter interface {
		// ExportPlan writes one row per payment slice. An empty plan writes nothing.
		ExportPlan(ctx context.Context, userID string, p core.Plan) (ref string, err error)
	}

	Exporter interface {
		SetAsideExporter
		PlanExporter
	}
)
