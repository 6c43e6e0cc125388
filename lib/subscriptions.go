package lib

import (
	"context"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/monitor"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
	"go.uber.org/zap"
)

type subscriptions struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	monitor *monitor.Monitor
}

// ClassOverview pairs a subscribed class key with its tracked state. State is
// nil when the class has never been scraped successfully.
type ClassOverview struct {
	ClassKey string
	State    *models.ClassState
}

// Subscribe registers a user for notifications on one class. It runs an
// immediate check first so the subscription starts from a known baseline;
// if the scrape fails the subscription is still created and the poller will
// pick the class up on its next cycle.
func (s *subscriptions) Subscribe(ctx context.Context, platform, userID, subject, catalogNumber string) (*models.ClassState, bool, error) {
	classKey := models.MakeClassKey(subject, catalogNumber, s.cfg.Term)

	var state *models.ClassState
	if res, err := s.monitor.CheckClass(ctx, classKey); err != nil {
		s.log.Sugar().Warnf("Baseline check for %s failed, deferring to poller: %v", classKey, err)
	} else {
		state = &res.State
	}

	created, err := s.store.Subscribe(ctx, platform, userID, classKey)
	if err != nil {
		return nil, false, fmt.Errorf("subscribing %s/%s to %s: %w", platform, userID, classKey, err)
	}
	if created {
		s.log.Sugar().Infof("Subscribed %s/%s to %s", platform, userID, classKey)
	}
	return state, created, nil
}

func (s *subscriptions) Unsubscribe(ctx context.Context, platform, userID, subject, catalogNumber string) (bool, error) {
	classKey := models.MakeClassKey(subject, catalogNumber, s.cfg.Term)
	removed, err := s.store.Unsubscribe(ctx, platform, userID, classKey)
	if err != nil {
		return false, fmt.Errorf("unsubscribing %s/%s from %s: %w", platform, userID, classKey, err)
	}
	if removed {
		s.log.Sugar().Infof("Unsubscribed %s/%s from %s", platform, userID, classKey)
	}
	return removed, nil
}

// ListSubscriptions returns the user's subscribed classes with their latest
// tracked states.
func (s *subscriptions) ListSubscriptions(ctx context.Context, platform, userID string) ([]ClassOverview, error) {
	keys, err := s.store.ClassesOf(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	overviews := make([]ClassOverview, 0, len(keys))
	for _, key := range keys {
		state, err := s.store.LoadClassState(ctx, key)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, ClassOverview{ClassKey: key, State: state})
	}
	return overviews, nil
}
