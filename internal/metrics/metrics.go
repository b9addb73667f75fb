// Package metrics exposes Prometheus instruments for planning runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"glidemoney/internal/core"
)

const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Registry holds every planner metric on its own prometheus.Registry so that
// several instances can coexist in one process.
type Registry struct {
	reg *prometheus.Registry

	PlanRuns       *prometheus.CounterVec
	PlanDuration   *prometheus.HistogramVec
	SlicesIssued   prometheus.Counter
	AllocatedCents prometheus.Counter
	SetAsideCents  prometheus.Counter
	SideEffectErrs *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		PlanRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glidemoney_plan_runs_total",
				Help: "Planning runs by trigger and result",
			},
			[]string{"trigger", "result"},
		),

		PlanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glidemoney_plan_duration_seconds",
				Help:    "Duration of a planning run including the snapshot read",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"trigger"},
		),

		SlicesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glidemoney_payment_slices_total",
				Help: "Payment slices recommended across all runs",
			},
		),

		AllocatedCents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glidemoney_allocated_cents_total",
				Help: "Cents allocated to card payments across all runs",
			},
		),

		SetAsideCents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glidemoney_set_aside_cents_total",
				Help: "Cents reserved for CPP, income tax, and HST across all runs",
			},
		),

		SideEffectErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glidemoney_side_effect_errors_total",
				Help: "Non-critical failures after a plan was computed",
			},
			[]string{"stage"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glidemoney_plan_cache_lookups_total",
				Help: "Plan cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.reg.MustRegister(
		r.PlanRuns, r.PlanDuration, r.SlicesIssued, r.AllocatedCents, r.SetAsideCents,
		r.SideEffectErrs, r.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObservePlan records a finished run.
func (r *Registry) ObservePlan(trigger string, p core.Plan, elapsed time.Duration) {
	result := ResultOK
	if p.Empty() {
		result = ResultEmpty
	}
	r.PlanRuns.WithLabelValues(trigger, result).Inc()
	r.PlanDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	r.SlicesIssued.Add(float64(len(p.Slices)))
	r.AllocatedCents.Add(float64(p.Allocated().Cents))
	r.SetAsideCents.Add(float64(p.SetAsides.Total.Cents))
}

func (r *Registry) ObserveFailure(trigger string, elapsed time.Duration) {
	r.PlanRuns.WithLabelValues(trigger, ResultError).Inc()
	r.PlanDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveSkip(trigger string) {
	r.PlanRuns.WithLabelValues(trigger, ResultSkipped).Inc()
}

func (r *Registry) SideEffectFailed(stage string) {
	r.SideEffectErrs.WithLabelValues(stage).Inc()
}

func (r *Registry) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.CacheLookups.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
