package store

import (
	"context"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"gorm.io/gorm/clause"
)

// Subscribe is idempotent: subscribing twice has the same effect as once.
// The returned flag is false when the subscription already existed.
func (s *Store) Subscribe(ctx context.Context, platform, userID, classKey string) (bool, error) {
	sub := models.Subscription{
		Platform: platform,
		UserID:   userID,
		ClassKey: classKey,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sub)
	return tx.RowsAffected > 0, tx.Error
}

// Unsubscribe reports false when no such subscription was on record.
func (s *Store) Unsubscribe(ctx context.Context, platform, userID, classKey string) (bool, error) {
	tx := s.db.WithContext(ctx).
		Where("platform = ? AND user_id = ? AND class_key = ?", platform, userID, classKey).
		Delete(&models.Subscription{})
	return tx.RowsAffected > 0, tx.Error
}

func (s *Store) SubscribersOf(ctx context.Context, classKey string) (models.Subscriptions, error) {
	var subs models.Subscriptions
	tx := s.db.WithContext(ctx).Where("class_key = ?", classKey).Find(&subs)
	return subs, tx.Error
}

func (s *Store) ClassesOf(ctx context.Context, platform, userID string) ([]string, error) {
	var keys []string
	tx := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("platform = ? AND user_id = ?", platform, userID).
		Order("class_key").
		Pluck("class_key", &keys)
	return keys, tx.Error
}

// SubscribedClassKeys lists every class with at least one subscriber; this is
// the poll cycle's work list.
func (s *Store) SubscribedClassKeys(ctx context.Context) ([]string, error) {
	var keys []string
	tx := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Distinct("class_key").
		Order("class_key").
		Pluck("class_key", &keys)
	return keys, tx.Error
}
