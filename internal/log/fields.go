package log

import "glidemoney/internal/core"

// Field names shared by every component.
const (
	FieldComponent    = "component"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldDuration     = "duration_ms"
	FieldUserID       = "user_id"
	FieldCardID       = "card_id"
	FieldAmountCents  = "amount_cents"
	FieldBudgetCents  = "budget_cents"
	FieldSetAside     = "set_aside_cents"
	FieldSlices       = "slices"
	FieldJurisdiction = "jurisdiction"
	FieldTaxYear      = "tax_year"
	FieldMessageID    = "message_id"
	FieldTrigger      = "trigger"
	FieldExportRef    = "export_ref"
)

const (
	ComponentApp     = "app"
	ComponentTax     = "tax"
	ComponentGlide   = "glide"
	ComponentPlanner = "planner"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentCache   = "cache"
	ComponentMetrics = "metrics"
	ComponentCLI     = "cli"
	ComponentAPI     = "api"
)

const (
	OpPlan     = "plan"
	OpSetAside = "set_aside"
	OpRead     = "read"
	OpWrite    = "write"
	OpExport   = "export"
	OpConsume  = "consume"
	OpPublish  = "publish"
	OpMigrate  = "migrate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeJurisdiction  = "jurisdiction_error"
	ErrorTypeInternal      = "internal_error"
)

// Fields collects key/value pairs for a single record.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithUser(userID string) Fields {
	f[FieldUserID] = userID
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithSetAsides records the set-aside total of a run.
func (f Fields) WithSetAsides(s core.SetAsides) Fields {
	f[FieldSetAside] = s.Total.Cents
	return f
}

// WithPlan records budget and slice count of a computed plan.
func (f Fields) WithPlan(p core.Plan) Fields {
	f[FieldBudgetCents] = p.AvailableBudget.Cents
	f[FieldSlices] = len(p.Slices)
	f[FieldAmountCents] = p.Allocated().Cents
	return f
}

// Args flattens the fields for slog.
func (f Fields) Args() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
