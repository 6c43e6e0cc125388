package app

import (
	"database/sql"
	"time"

	"github.com/YGao2005/ucla-class-tracker/lib"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/monitor"
)

type ClassStateView struct {
	ClassKey         string `json:"class_key"`
	Subject          string `json:"subject"`
	CatalogNumber    string `json:"catalog_number"`
	Term             string `json:"term"`
	Status           string `json:"status"`
	Enrolled         int    `json:"enrolled"`
	Capacity         int    `json:"capacity"`
	WaitlistCount    int    `json:"waitlist_count"`
	WaitlistCapacity int    `json:"waitlist_capacity"`
	LastChecked      string `json:"last_checked"`
	LastNotifiedAt   *int64 `json:"last_notified_enrolled"`
	UpdatedAt        string `json:"updated_at"`
}

func (view ClassStateView) From(entity models.ClassState) ClassStateView {
	return ClassStateView{
		ClassKey:         entity.ClassKey,
		Subject:          entity.Subject,
		CatalogNumber:    entity.CatalogNumber,
		Term:             entity.Term,
		Status:           string(entity.Status),
		Enrolled:         entity.Enrolled,
		Capacity:         entity.Capacity,
		WaitlistCount:    entity.WaitlistCount,
		WaitlistCapacity: entity.WaitlistCapacity,
		LastChecked:      isoformat(entity.LastChecked),
		LastNotifiedAt:   nullableInt(entity.LastNotifiedEnrolled),
		UpdatedAt:        isoformat(entity.UpdatedAt),
	}
}

type ClassOverviewView struct {
	ClassKey string          `json:"class_key"`
	State    *ClassStateView `json:"state"`
}

func (view ClassOverviewView) From(overview lib.ClassOverview) ClassOverviewView {
	out := ClassOverviewView{ClassKey: overview.ClassKey}
	if overview.State != nil {
		state := ClassStateView{}.From(*overview.State)
		out.State = &state
	}
	return out
}

type EventView struct {
	Kind           string `json:"kind"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Description    string `json:"description"`
}

func (view EventView) From(event models.NotificationEvent) EventView {
	return EventView{
		Kind:           string(event.Kind),
		PreviousStatus: string(event.PreviousStatus),
		NewStatus:      string(event.NewStatus),
		Description:    event.Description,
	}
}

type CheckResultView struct {
	Class  ClassStateView `json:"class"`
	Events []EventView    `json:"events"`
}

func (view CheckResultView) From(res monitor.CheckResult) CheckResultView {
	return CheckResultView{
		Class:  ClassStateView{}.From(res.State),
		Events: FromMany[models.NotificationEvent, EventView](res.Events),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullableInt(n sql.NullInt64) *int64 {
	if n.Valid {
		v := n.Int64
		return &v
	}
	return nil
}
