// Package plancache keeps the latest computed plan per user in Redis so read
// paths can show it without recomputing. The cache is never authoritative:
// a miss or an error only means the caller recomputes.
package plancache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"glidemoney/internal/core"
)

const keyPrefix = "glidemoney:plan:"

type (
	entry struct {
		UserID         string      `json:"user_id"`
		AsOf           time.Time   `json:"as_of"`
		CPPCents       int64       `json:"cpp_cents"`
		IncomeTaxCents int64       `json:"income_tax_cents"`
		HSTRemitCents  int64       `json:"hst_remit_cents"`
		SetAsideCents  int64       `json:"set_aside_cents"`
		BudgetCents    int64       `json:"budget_cents"`
		Slices         []sliceJSON `json:"slices"`
	}

	sliceJSON struct {
		CardID      string    `json:"card_id"`
		CardName    string    `json:"card_name"`
		AmountCents int64     `json:"amount_cents"`
		SafeBy      time.Time `json:"safe_by"`
		Rationale   string    `json:"rationale"`
	}
)

// Cache stores plans under a per-user key with a fixed TTL.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(rdb, ttl), rdb, nil
}

func NewWithClient(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func key(userID string) string { return keyPrefix + userID }

// Get returns the cached plan. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, userID string) (core.Plan, bool, error) {
	data, err := c.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Plan{}, false, nil
	}
	if err != nil {
		return core.Plan{}, false, fmt.Errorf("redis get: %w", err)
	}
	p, err := decode(data)
	if err != nil {
		return core.Plan{}, false, fmt.Errorf("decode cached plan: %w", err)
	}
	return p, true, nil
}

func (c *Cache) Set(ctx context.Context, userID string, p core.Plan) error {
	data, err := encode(userID, p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := c.client.Set(ctx, key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the cached plan, e.g. after the user's inputs change.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func encode(userID string, p core.Plan) ([]byte, error) {
	e := entry{
		UserID:         userID,
		AsOf:           p.AsOf.UTC(),
		CPPCents:       p.SetAsides.CPP.Cents,
		IncomeTaxCents: p.SetAsides.IncomeTax.Cents,
		HSTRemitCents:  p.SetAsides.HSTRemit.Cents,
		SetAsideCents:  p.SetAsides.Total.Cents,
		BudgetCents:    p.AvailableBudget.Cents,
		Slices:         make([]sliceJSON, 0, len(p.Slices)),
	}
	for _, s := range p.Slices {
		e.Slices = append(e.Slices, sliceJSON{
			CardID:      s.CardID,
			CardName:    s.CardName,
			AmountCents: s.Amount.Cents,
			SafeBy:      s.SafeBy.UTC(),
			Rationale:   s.Rationale,
		})
	}
	return json.Marshal(e)
}

func decode(data []byte) (core.Plan, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return core.Plan{}, err
	}
	p := core.Plan{
		AsOf: e.AsOf,
		SetAsides: core.SetAsides{
			CPP:       core.Money{Cents: e.CPPCents},
			IncomeTax: core.Money{Cents: e.IncomeTaxCents},
			HSTRemit:  core.Money{Cents: e.HSTRemitCents},
			Total:     core.Money{Cents: e.SetAsideCents},
		},
		AvailableBudget: core.Money{Cents: e.BudgetCents},
	}
	for _, s := range e.Slices {
		p.Slices = append(p.Slices, core.PaymentSlice{
			CardID:    s.CardID,
			CardName:  s.CardName,
			Amount:    core.Money{Cents: s.AmountCents},
			SafeBy:    s.SafeBy,
			Rationale: s.Rationale,
		})
	}
	return p, nil
}
