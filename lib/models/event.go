package models

import "fmt"

// EventKind classifies the transition that triggered a notification.
type EventKind string

const (
	// EventStatusChanged fires whenever the class status differs from the
	// previous scrape. Always notifies, regardless of dedup markers.
	EventStatusChanged EventKind = "status_changed"

	// EventSeatsOpened fires when a class remains Open but its enrolled count
	// moved since subscribers were last notified and seats actually remain.
	EventSeatsOpened EventKind = "seats_opened_while_open"

	// EventWaitlistOpened fires when a previously full waitlist has room
	// again, independent of the status rules.
	EventWaitlistOpened EventKind = "waitlist_opened"
)

// NotificationEvent is a single notification-worthy transition produced by
// evaluating a fresh snapshot against the previous class state. It carries
// enough context for a sender to render a message without re-querying state.
type NotificationEvent struct {
	ClassKey         string
	Kind             EventKind
	PreviousStatus   Status
	NewStatus        Status
	Enrolled         int
	Capacity         int
	WaitlistCount    int
	WaitlistCapacity int
	Description      string
}

func (e NotificationEvent) String() string {
	return fmt.Sprintf("%s[%s]: %s", e.ClassKey, e.Kind, e.Description)
}
