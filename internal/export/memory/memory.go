package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"glidemoney/internal/core"
	"glidemoney/internal/export"
)

var _ export.Exporter = (*Store)(nil)

// SetAsideRecord is one exported set-aside summary.
type SetAsideRecord struct {
	UserID    string
	AsOf      time.Time
	SetAsides core.SetAsides
}

// SliceRecord is one exported payment slice.
type SliceRecord struct {
	UserID string
	AsOf   time.Time
	Slice  core.PaymentSlice
}

// Store keeps exported rows in memory. Used for local runs and tests.
type Store struct {
	mu        sync.Mutex
	setAsides []SetAsideRecord
	slices    []SliceRecord
}

func New() *Store {
	return &Store{}
}

func (s *Store) ExportSetAsides(_ context.Context, userID string, asOf time.Time, sa core.SetAsides) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAsides = append(s.setAsides, SetAsideRecord{UserID: userID, AsOf: asOf, SetAsides: sa})
	return fmt.Sprintf("mem:setaside:%d", len(s.setAsides)), nil
}

func (s *Store) ExportPlan(_ context.Context, userID string, p core.Plan) (string, error) {
	if p.Empty() {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.slices) + 1
	for _, sl := range p.Slices {
		s.slices = append(s.slices, SliceRecord{UserID: userID, AsOf: p.AsOf, Slice: sl})
	}
	return fmt.Sprintf("mem:plan:%d-%d", first, len(s.slices)), nil
}

// SetAsides returns a copy of every exported set-aside record.
func (s *Store) SetAsides() []SetAsideRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SetAsideRecord(nil), s.setAsides...)
}

// Slices returns a copy of every exported slice, optionally for one user.
func (s *Store) Slices(userID string) []SliceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SliceRecord, 0, len(s.slices))
	for _, r := range s.slices {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}
