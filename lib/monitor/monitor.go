// Package monitor runs the scrape -> evaluate -> commit -> notify pipeline:
// on a timer for every subscribed class, and on demand for a single class
// when a user asks for a check right now. The two entry points share the same
// per-class locks, and the store's compare-and-swap covers writers in other
// processes.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
	"github.com/YGao2005/ucla-class-tracker/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Source produces a fresh snapshot of one class, with no guarantees about
// transient failures. The UCLA scraper is the production implementation.
type Source interface {
	FetchSnapshot(ctx context.Context, subject, catalogNumber, term string) (models.Snapshot, error)
}

func NewMonitor(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, st *store.Store, source Source, senders senders.Registry) *Monitor {
	m := &Monitor{
		cfg:           cfg,
		log:           log,
		store:         st,
		source:        source,
		senders:       senders,
		concurrency:   5,
		pollInterval:  cfg.PollInterval(),
		scrapeTimeout: cfg.ScrapeTimeout(),
		locks:         newKeyLocks(),
		done:          make(chan struct{}),
	}
	// The loop context exists before Start is ever scheduled, so Stop works
	// no matter how the lifecycle interleaves.
	m.ctx, m.cancel = context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go m.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop monitor")
			m.Stop()
			return nil
		},
	})

	return m
}

type Monitor struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	source  Source
	senders senders.Registry

	locks  *keyLocks
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed when the loop exits

	concurrency   int
	pollInterval  time.Duration
	scrapeTimeout time.Duration
}

func (m *Monitor) Start() {
	defer close(m.done)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.log.Sugar().Info("Monitor stopped")
			return

		case wakeupTime := <-ticker.C:
			m.checkAll(wakeupTime)
		}
	}
}

// Stop cancels the poll loop and waits for the in-flight cycle, if any, to
// finish its commits. Cycles run in the loop goroutine, so loop exit means no
// class is left mid-evaluation.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
}

func (m *Monitor) checkAll(wakeupTime time.Time) {
	// The cycle runs on a fresh context: shutdown waits it out via Stop
	// instead of cancelling a commit halfway.
	ctx := context.Background()

	keys, err := m.store.SubscribedClassKeys(ctx)
	if err != nil {
		m.log.Sugar().Errorw("Failed to list subscribed classes", "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}

	metrics := m.checkBatches(ctx, keys)
	elapsed := time.Now().UTC().Sub(wakeupTime)
	m.log.Sugar().Infow(
		fmt.Sprintf("Checked %d classes", metrics.checked),
		"changed", metrics.changed,
		"unchanged", metrics.unchanged,
		"errored", metrics.errored,
		"elapsed_msecs", int(elapsed.Milliseconds()),
	)
}

func (m *Monitor) checkBatches(ctx context.Context, keys []string) *checkMetrics {
	metrics := &checkMetrics{}

	for start := 0; start < len(keys); start += m.concurrency {
		end := start + m.concurrency
		if end > len(keys) {
			end = len(keys)
		}

		var wg sync.WaitGroup
		results := make(chan *checkMetrics, end-start)

		for _, key := range keys[start:end] {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				results <- m.checkOne(ctx, key)
			}(key)
		}
		wg.Wait()
		close(results)

		for r := range results {
			metrics.Add(r)
		}
	}
	return metrics
}

func (m *Monitor) checkOne(ctx context.Context, key string) *checkMetrics {
	metrics := &checkMetrics{checked: 1}

	result, err := m.CheckClass(ctx, key)
	switch {
	case err != nil:
		metrics.errored = 1
		m.log.Sugar().Warnw("Check failed", "class", key, "err", err)
	case len(result.Events) > 0:
		metrics.changed = 1
	default:
		metrics.unchanged = 1
	}
	return metrics
}
