package models

import (
	"database/sql"
	"regexp"
	"strings"
	"time"
)

// Status is the enrollment status of a class as shown on the Schedule of
// Classes. Closed means the class is not offered or was cancelled.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusWaitlisted Status = "Waitlisted"
	StatusFull       Status = "Full"
	StatusClosed     Status = "Closed"
)

// ClassState is the last-known enrollment snapshot for one class, plus the
// dedup marker used to bound notification frequency while the class stays
// open. One row per class key.
type ClassState struct {
	ClassKey         string `gorm:"primaryKey"`
	Subject          string
	CatalogNumber    string
	Term             string
	Status           Status
	Enrolled         int
	Capacity         int
	WaitlistCount    int
	WaitlistCapacity int

	// LastChecked only ever moves forward; commits are guarded by a
	// compare-and-swap against its previous value.
	LastChecked time.Time

	// LastNotifiedEnrolled holds the enrolled count at the time subscribers
	// were last notified while the class stays Open. Invalid means no
	// notification is on record for the current Open stretch.
	LastNotifiedEnrolled sql.NullInt64

	UpdatedAt time.Time

	Subscriptions []Subscription `gorm:"foreignKey:ClassKey;references:ClassKey;constraint:OnDelete:CASCADE"`
}

type ClassStates []ClassState

var whitespace = regexp.MustCompile(`\s+`)

// MakeClassKey builds the canonical key for a class. Case and runs of
// whitespace are normalized so "com sci" and "COM  SCI" address the same row.
func MakeClassKey(subject, catalogNumber, term string) string {
	return strings.Join([]string{
		normalizeKeyPart(subject),
		normalizeKeyPart(catalogNumber),
		normalizeKeyPart(term),
	}, "_")
}

// ParseClassKey splits a canonical key back into its parts.
func ParseClassKey(key string) (subject, catalogNumber, term string) {
	parts := strings.SplitN(key, "_", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

func normalizeKeyPart(s string) string {
	s = strings.TrimSpace(strings.ToUpper(s))
	return whitespace.ReplaceAllString(s, " ")
}
