package plancache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glidemoney/internal/core"
)

const ttl = 24 * time.Hour

var asOf = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)

func samplePlan() core.Plan {
	return core.Plan{
		AsOf:            asOf,
		SetAsides:       core.SetAsides{CPP: core.Money{Cents: 3646}, IncomeTax: core.Money{Cents: 12240}, Total: core.Money{Cents: 15886}},
		AvailableBudget: core.Money{Cents: 42114},
		Slices: []core.PaymentSlice{{
			CardID:    "td-visa",
			CardName:  "TD Visa",
			Amount:    core.Money{Cents: 42114},
			SafeBy:    asOf.AddDate(0, 0, 2),
			Rationale: "Limit $2,000.00 • Target 10% • Gap $760.00",
		}},
	}
}

func TestSetThenGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, ttl)
	ctx := context.Background()

	data, err := encode("u1", samplePlan())
	require.NoError(t, err)

	mock.ExpectSet("glidemoney:plan:u1", data, ttl).SetVal("OK")
	require.NoError(t, c.Set(ctx, "u1", samplePlan()))

	mock.ExpectGet("glidemoney:plan:u1").SetVal(string(data))
	got, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	want := samplePlan()
	assert.True(t, got.AsOf.Equal(want.AsOf))
	assert.Equal(t, want.SetAsides, got.SetAsides)
	assert.Equal(t, want.AvailableBudget, got.AvailableBudget)
	require.Len(t, got.Slices, 1)
	assert.Equal(t, want.Slices[0].Amount, got.Slices[0].Amount)
	assert.Equal(t, want.Slices[0].Rationale, got.Slices[0].Rationale)
	assert.True(t, got.Slices[0].SafeBy.Equal(want.Slices[0].SafeBy))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, ttl)

	mock.ExpectGet("glidemoney:plan:u2").RedisNil()
	_, ok, err := c.Get(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorsAreWrapped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, ttl)
	ctx := context.Background()

	mock.ExpectGet("glidemoney:plan:u1").SetErr(redis.TxFailedErr)
	_, ok, err := c.Get(ctx, "u1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, redis.TxFailedErr))

	mock.ExpectGet("glidemoney:plan:u1").SetVal("not json")
	_, _, err = c.Get(ctx, "u1")
	assert.ErrorContains(t, err, "decode cached plan")

	data, _ := encode("u1", samplePlan())
	mock.ExpectSet("glidemoney:plan:u1", data, ttl).SetErr(redis.TxFailedErr)
	assert.ErrorContains(t, c.Set(ctx, "u1", samplePlan()), "redis set")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, ttl)

	mock.ExpectDel("glidemoney:plan:u1").SetVal(1)
	require.NoError(t, c.Invalidate(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyPlanRoundTrip(t *testing.T) {
	data, err := encode("u1", core.Plan{AsOf: asOf})
	require.NoError(t, err)
	p, err := decode(data)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.Zero(t, p.AvailableBudget.Cents)
}
