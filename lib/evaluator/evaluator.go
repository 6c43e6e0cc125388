// Package evaluator decides, given the previous state of a class and a fresh
// snapshot, which notification-worthy transitions occurred. It is a pure
// function of its inputs: the caller owns loading the previous state,
// persisting the next one, and fanning out the events. Committing Result.Next
// is what makes re-evaluation idempotent; feeding the committed state back in
// with an unchanged snapshot yields no further events.
package evaluator

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
)

// ErrStaleSnapshot means the snapshot is older than the state on record.
// LastChecked only moves forward.
var ErrStaleSnapshot = errors.New("snapshot predates last recorded check")

// Result pairs the events to dispatch with the state to persist. The two are
// derived from the same evaluation and must be committed together: a failed
// commit implies no dispatch.
type Result struct {
	Events []models.NotificationEvent
	Next   models.ClassState
}

// Evaluate applies the transition rules to (prev, snap). prev == nil means
// this is the first-ever observation of the class: the snapshot becomes the
// baseline and nothing is notified.
func Evaluate(prev *models.ClassState, snap models.Snapshot) (Result, error) {
	if err := snap.Validate(); err != nil {
		return Result{}, fmt.Errorf("rejecting snapshot for %s: %w", snap.Key(), err)
	}
	if prev != nil && snap.ObservedAt.Before(prev.LastChecked) {
		return Result{}, ErrStaleSnapshot
	}

	next := stateFromSnapshot(snap)

	if prev == nil {
		// Baseline. An Open class starts with its marker set so the open-seats
		// rule does not fire one cycle later without any actual movement.
		if snap.Status == models.StatusOpen {
			next.LastNotifiedEnrolled = nullableInt(snap.Enrolled)
		}
		return Result{Next: next}, nil
	}

	var events []models.NotificationEvent

	if prev.Status != snap.Status {
		events = append(events, statusChangedEvent(prev, snap))
		if snap.Status == models.StatusOpen {
			next.LastNotifiedEnrolled = nullableInt(snap.Enrolled)
		}
	} else if snap.Status == models.StatusOpen {
		if openSeatsMoved(prev, snap) {
			events = append(events, seatsOpenedEvent(prev, snap))
			next.LastNotifiedEnrolled = nullableInt(snap.Enrolled)
		} else {
			next.LastNotifiedEnrolled = prev.LastNotifiedEnrolled
		}
	}
	// Full->Full and Closed->Closed stay silent whatever the counts do.

	if waitlistOpened(prev, snap) {
		events = append(events, waitlistOpenedEvent(prev, snap))
	}

	return Result{Events: events, Next: next}, nil
}

// openSeatsMoved reports whether an Open->Open transition warrants another
// notification: the enrolled count differs from the last notified one and
// there are seats left to take.
func openSeatsMoved(prev *models.ClassState, snap models.Snapshot) bool {
	if snap.Enrolled >= snap.Capacity {
		return false
	}
	if !prev.LastNotifiedEnrolled.Valid {
		return true
	}
	return int64(snap.Enrolled) != prev.LastNotifiedEnrolled.Int64
}

// waitlistOpened fires when a full waitlist gained room, independent of the
// status rules.
func waitlistOpened(prev *models.ClassState, snap models.Snapshot) bool {
	wasFull := prev.WaitlistCount >= prev.WaitlistCapacity
	hasRoom := snap.WaitlistCount < snap.WaitlistCapacity
	return wasFull && hasRoom
}

func stateFromSnapshot(snap models.Snapshot) models.ClassState {
	return models.ClassState{
		ClassKey:         snap.Key(),
		Subject:          snap.Subject,
		CatalogNumber:    snap.CatalogNumber,
		Term:             snap.Term,
		Status:           snap.Status,
		Enrolled:         snap.Enrolled,
		Capacity:         snap.Capacity,
		WaitlistCount:    snap.WaitlistCount,
		WaitlistCapacity: snap.WaitlistCapacity,
		LastChecked:      snap.ObservedAt,
	}
}

func statusChangedEvent(prev *models.ClassState, snap models.Snapshot) models.NotificationEvent {
	return event(prev, snap, models.EventStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", prev.Status, snap.Status))
}

func seatsOpenedEvent(prev *models.ClassState, snap models.Snapshot) models.NotificationEvent {
	return event(prev, snap, models.EventSeatsOpened,
		fmt.Sprintf("%d of %d seats taken, %d open", snap.Enrolled, snap.Capacity, snap.Capacity-snap.Enrolled))
}

func waitlistOpenedEvent(prev *models.ClassState, snap models.Snapshot) models.NotificationEvent {
	return event(prev, snap, models.EventWaitlistOpened,
		fmt.Sprintf("Waitlist has room again: %d of %d", snap.WaitlistCount, snap.WaitlistCapacity))
}

func event(prev *models.ClassState, snap models.Snapshot, kind models.EventKind, description string) models.NotificationEvent {
	return models.NotificationEvent{
		ClassKey:         snap.Key(),
		Kind:             kind,
		PreviousStatus:   prev.Status,
		NewStatus:        snap.Status,
		Enrolled:         snap.Enrolled,
		Capacity:         snap.Capacity,
		WaitlistCount:    snap.WaitlistCount,
		WaitlistCapacity: snap.WaitlistCapacity,
		Description:      description,
	}
}

func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
