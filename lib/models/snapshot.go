package models

import (
	"fmt"
	"time"
)

// Snapshot is one scrape of a class's enrollment figures. Snapshots are
// ephemeral; they only become durable once folded into a ClassState.
type Snapshot struct {
	Subject          string
	CatalogNumber    string
	Term             string
	Status           Status
	Enrolled         int
	Capacity         int
	WaitlistCount    int
	WaitlistCapacity int
	ObservedAt       time.Time
}

func (s Snapshot) Key() string {
	return MakeClassKey(s.Subject, s.CatalogNumber, s.Term)
}

// Validate rejects figures that can only come from a broken scrape. Malformed
// snapshots must never reach evaluation or the store.
func (s Snapshot) Validate() error {
	switch s.Status {
	case StatusOpen, StatusWaitlisted, StatusFull, StatusClosed:
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if s.Enrolled < 0 || s.Capacity < 0 || s.WaitlistCount < 0 || s.WaitlistCapacity < 0 {
		return fmt.Errorf("negative enrollment figures: %d/%d waitlist %d/%d",
			s.Enrolled, s.Capacity, s.WaitlistCount, s.WaitlistCapacity)
	}
	if s.Capacity > 0 && s.Enrolled > s.Capacity {
		return fmt.Errorf("enrolled %d exceeds capacity %d", s.Enrolled, s.Capacity)
	}
	return nil
}
