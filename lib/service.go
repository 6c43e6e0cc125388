// Package lib exposes the operations shared by the Discord bot and the HTTP
// API: on-demand checks, subscription management, and read views over the
// monitored classes.
package lib

import (
	"context"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/monitor"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	monitor *monitor.Monitor

	*subscriptions
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, st *store.Store, mon *monitor.Monitor) *Service {
	return &Service{
		cfg, log, st, mon,
		&subscriptions{cfg, log, st, mon},
	}
}

// CheckNow runs the full pipeline for one class immediately. It shares the
// per-class lock with the scheduled poll, so "check now" during a poll cycle
// can never double-notify.
func (svc *Service) CheckNow(ctx context.Context, subject, catalogNumber string) (monitor.CheckResult, error) {
	classKey := models.MakeClassKey(subject, catalogNumber, svc.cfg.Term)
	return svc.monitor.CheckClass(ctx, classKey)
}

func (svc *Service) GetClass(ctx context.Context, subject, catalogNumber string) (*models.ClassState, error) {
	classKey := models.MakeClassKey(subject, catalogNumber, svc.cfg.Term)
	return svc.store.LoadClassState(ctx, classKey)
}

func (svc *Service) AllClasses(ctx context.Context) (models.ClassStates, error) {
	return svc.store.AllClassStates(ctx)
}

// RemoveClass drops a class from monitoring; its subscriptions go with it.
func (svc *Service) RemoveClass(ctx context.Context, subject, catalogNumber string) error {
	classKey := models.MakeClassKey(subject, catalogNumber, svc.cfg.Term)
	if err := svc.store.DeleteClassState(ctx, classKey); err != nil {
		return fmt.Errorf("removing %s: %w", classKey, err)
	}
	svc.log.Sugar().Infof("Removed class %s and its subscriptions", classKey)
	return nil
}
