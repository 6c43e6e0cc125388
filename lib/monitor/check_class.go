package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib/evaluator"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
)

// CheckResult is the outcome of one pipeline iteration for one class.
type CheckResult struct {
	State    models.ClassState
	Events   []models.NotificationEvent
	Attempts []DeliveryAttempt
}

// CheckClass runs load -> scrape -> evaluate -> commit -> dispatch for one
// class. The whole iteration holds that class's lock, so a scheduled cycle
// and an on-demand check can never both act on the same stale previous state.
// Failures leave the stored state untouched and dispatch nothing.
func (m *Monitor) CheckClass(ctx context.Context, classKey string) (CheckResult, error) {
	unlock := m.locks.acquire(classKey)
	defer unlock()

	subject, catalogNumber, term := models.ParseClassKey(classKey)
	if term == "" {
		term = m.cfg.Term
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, m.scrapeTimeout)
	defer cancel()

	// A failed or timed-out scrape means "no new snapshot", never Closed.
	snap, err := m.source.FetchSnapshot(scrapeCtx, subject, catalogNumber, term)
	if err != nil {
		return CheckResult{}, fmt.Errorf("scrape failed for %s: %w", classKey, err)
	}

	prev, err := m.store.LoadClassState(ctx, classKey)
	if err != nil {
		return CheckResult{}, fmt.Errorf("loading state for %s: %w", classKey, err)
	}

	result, err := evaluator.Evaluate(prev, snap)
	if err != nil {
		m.log.Sugar().Warnw("Snapshot rejected", "class", classKey, "err", err)
		return CheckResult{}, err
	}

	// Dispatch only after the commit: a failed commit means another writer
	// owns this transition, or nothing was durably recorded.
	if err := m.store.CommitClassState(ctx, prev, result.Next); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			m.log.Sugar().Infow("Lost commit race, skipping dispatch", "class", classKey)
		}
		return CheckResult{}, fmt.Errorf("committing state for %s: %w", classKey, err)
	}

	attempts := m.dispatch(ctx, &result.Next, result.Events)
	return CheckResult{State: result.Next, Events: result.Events, Attempts: attempts}, nil
}
