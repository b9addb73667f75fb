package storage

import "database/sql"

type UserProfile struct {
	UserID            string
	TargetUtilization float64
	CushionCents      int64
	Cadence           string
	Jurisdiction      string
	EffectiveTaxRate  float64
	HstRegistered     bool
	UpdatedAt         string
}

type Card struct {
	UserID             string
	ID                 string
	Name               string
	Institution        string
	LimitCents         int64
	PostedBalanceCents int64
	Apr                float64
	TargetUtilization  float64
	NextCloseDate      sql.NullString
	PostingDelayDays   int64
	UpdatedAt          string
}

type Bill struct {
	ID          int64
	UserID      string
	Name        string
	AmountCents int64
	DueDate     string
}

type Income struct {
	ID            int64
	UserID        string
	GrossCents    int64
	HstRegistered bool
	ReceivedAt    string
	Source        string
}

type PlanRun struct {
	ID             int64
	UserID         string
	AsOf           string
	Trigger        string
	SetAsideCents  int64
	BudgetCents    int64
	AllocatedCents int64
	Slices         int64
}
