package storage

import (
	"context"
	"database/sql"
)

const upsertProfile = `INSERT INTO user_profiles (
    user_id, target_utilization, cushion_cents, cadence, jurisdiction, effective_tax_rate, hst_registered, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    target_utilization = excluded.target_utilization,
    cushion_cents      = excluded.cushion_cents,
    cadence            = excluded.cadence,
    jurisdiction       = excluded.jurisdiction,
    effective_tax_rate = excluded.effective_tax_rate,
    hst_registered     = excluded.hst_registered,
    updated_at         = excluded.updated_at`

func (q *Queries) UpsertProfile(ctx context.Context, p UserProfile) error {
	_, err := q.db.ExecContext(ctx, upsertProfile,
		p.UserID, p.TargetUtilization, p.CushionCents, p.Cadence, p.Jurisdiction, p.EffectiveTaxRate, p.HstRegistered, p.UpdatedAt)
	return err
}

const getProfile = `SELECT user_id, target_utilization, cushion_cents, cadence, jurisdiction, effective_tax_rate, hst_registered, updated_at
FROM user_profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	var p UserProfile
	err := q.db.QueryRowContext(ctx, getProfile, userID).Scan(
		&p.UserID, &p.TargetUtilization, &p.CushionCents, &p.Cadence, &p.Jurisdiction, &p.EffectiveTaxRate, &p.HstRegistered, &p.UpdatedAt)
	return p, err
}

const listUserIDs = `SELECT user_id FROM user_profiles ORDER BY user_id`

func (q *Queries) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const upsertCard = `INSERT INTO cards (
    user_id, id, name, institution, limit_cents, posted_balance_cents, apr, target_utilization, next_close_date, posting_delay_days, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE SET
    name                 = excluded.name,
    institution          = excluded.institution,
    limit_cents          = excluded.limit_cents,
    posted_balance_cents = excluded.posted_balance_cents,
    apr                  = excluded.apr,
    target_utilization   = excluded.target_utilization,
    next_close_date      = excluded.next_close_date,
    posting_delay_days   = excluded.posting_delay_days,
    updated_at           = excluded.updated_at`

func (q *Queries) UpsertCard(ctx context.Context, c Card) error {
	_, err := q.db.ExecContext(ctx, upsertCard,
		c.UserID, c.ID, c.Name, c.Institution, c.LimitCents, c.PostedBalanceCents, c.Apr, c.TargetUtilization,
		c.NextCloseDate, c.PostingDelayDays, c.UpdatedAt)
	return err
}

const listCards = `SELECT user_id, id, name, institution, limit_cents, posted_balance_cents, apr, target_utilization, next_close_date, posting_delay_days, updated_at
FROM cards WHERE user_id = ? ORDER BY id`

func (q *Queries) ListCards(ctx context.Context, userID string) ([]Card, error) {
	rows, err := q.db.QueryContext(ctx, listCards, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.UserID, &c.ID, &c.Name, &c.Institution, &c.LimitCents, &c.PostedBalanceCents, &c.Apr,
			&c.TargetUtilization, &c.NextCloseDate, &c.PostingDelayDays, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const deleteCard = `DELETE FROM cards WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteCard(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCard, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createBill = `INSERT INTO bills (user_id, name, amount_cents, due_date) VALUES (?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateBill(ctx context.Context, b Bill) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createBill, b.UserID, b.Name, b.AmountCents, b.DueDate).Scan(&id)
	return id, err
}

const listBillsDue = `SELECT id, user_id, name, amount_cents, due_date
FROM bills WHERE user_id = ? AND due_date >= ? AND due_date < ? ORDER BY due_date, id`

func (q *Queries) ListBillsDue(ctx context.Context, userID, from, to string) ([]Bill, error) {
	rows, err := q.db.QueryContext(ctx, listBillsDue, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.AmountCents, &b.DueDate); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const createIncome = `INSERT INTO income (user_id, gross_cents, hst_registered, received_at, source) VALUES (?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateIncome(ctx context.Context, i Income) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createIncome, i.UserID, i.GrossCents, i.HstRegistered, i.ReceivedAt, i.Source).Scan(&id)
	return id, err
}

const listIncome = `SELECT id, user_id, gross_cents, hst_registered, received_at, source
FROM income WHERE user_id = ? AND received_at >= ? AND received_at < ? ORDER BY received_at, id`

func (q *Queries) ListIncome(ctx context.Context, userID, from, to string) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, listIncome, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		var i Income
		if err := rows.Scan(&i.ID, &i.UserID, &i.GrossCents, &i.HstRegistered, &i.ReceivedAt, &i.Source); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createPlanRun = `INSERT INTO plan_runs (user_id, as_of, trigger, set_aside_cents, budget_cents, allocated_cents, slices)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePlanRun(ctx context.Context, r PlanRun) error {
	_, err := q.db.ExecContext(ctx, createPlanRun, r.UserID, r.AsOf, r.Trigger, r.SetAsideCents, r.BudgetCents, r.AllocatedCents, r.Slices)
	return err
}

const lastPlanRun = `SELECT id, user_id, as_of, trigger, set_aside_cents, budget_cents, allocated_cents, slices
FROM plan_runs WHERE user_id = ? ORDER BY as_of DESC, id DESC LIMIT 1`

func (q *Queries) LastPlanRun(ctx context.Context, userID string) (PlanRun, error) {
	var r PlanRun
	err := q.db.QueryRowContext(ctx, lastPlanRun, userID).Scan(
		&r.ID, &r.UserID, &r.AsOf, &r.Trigger, &r.SetAsideCents, &r.BudgetCents, &r.AllocatedCents, &r.Slices)
	return r, err
}

var _ DBTX = (*sql.DB)(nil)
