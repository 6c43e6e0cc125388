// Package store owns the durable class-state rows and the subscription index.
// Two processes share the underlying database, so every class-state commit is
// an optimistic compare-and-swap on last_checked: whoever loses the race gets
// ErrStaleState and must not dispatch.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleState means another writer committed the class between our load and
// our commit. The whole pipeline iteration for that class must be abandoned.
var ErrStaleState = errors.New("class state changed since it was loaded")

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db, log}
}

// LoadClassState returns the last-known state, or nil when the class has
// never been observed. A missing row is distinct from a row whose
// LastNotifiedEnrolled is null.
func (s *Store) LoadClassState(ctx context.Context, classKey string) (*models.ClassState, error) {
	var state models.ClassState
	tx := s.db.WithContext(ctx).Where("class_key = ?", classKey).First(&state)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &state, nil
}

// CommitClassState persists the state produced by an evaluation. prev must be
// exactly what LoadClassState returned for this pipeline iteration; it is the
// compare half of the compare-and-swap.
func (s *Store) CommitClassState(ctx context.Context, prev *models.ClassState, next models.ClassState) error {
	if prev == nil {
		tx := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&next)
		if err := tx.Error; err != nil {
			return err
		}
		if tx.RowsAffected == 0 {
			// Someone else inserted the baseline first.
			return ErrStaleState
		}
		return nil
	}

	tx := s.db.WithContext(ctx).
		Model(&models.ClassState{}).
		Where("class_key = ? AND last_checked = ?", next.ClassKey, prev.LastChecked).
		Updates(map[string]any{
			"subject":                next.Subject,
			"catalog_number":         next.CatalogNumber,
			"term":                   next.Term,
			"status":                 next.Status,
			"enrolled":               next.Enrolled,
			"capacity":               next.Capacity,
			"waitlist_count":         next.WaitlistCount,
			"waitlist_capacity":      next.WaitlistCapacity,
			"last_checked":           next.LastChecked,
			"last_notified_enrolled": next.LastNotifiedEnrolled,
		})
	if err := tx.Error; err != nil {
		return err
	}
	if tx.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (s *Store) AllClassStates(ctx context.Context) (models.ClassStates, error) {
	var states models.ClassStates
	tx := s.db.WithContext(ctx).
		Order("subject").
		Order("catalog_number").
		Find(&states)
	return states, tx.Error
}

// DeleteClassState removes a class from monitoring along with every
// subscription pointing at it.
func (s *Store) DeleteClassState(ctx context.Context, classKey string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_key = ?", classKey).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		res := tx.Where("class_key = ?", classKey).Delete(&models.ClassState{})
		if err := res.Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("no class state for %s", classKey)
		}
		return nil
	})
}
