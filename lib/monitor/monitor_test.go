package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/store"
	"github.com/YGao2005/ucla-class-tracker/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeSource struct {
	snap models.Snapshot
	err  error
}

func (f *fakeSource) FetchSnapshot(ctx context.Context, subject, catalogNumber, term string) (models.Snapshot, error) {
	if f.err != nil {
		return models.Snapshot{}, f.err
	}
	snap := f.snap
	snap.Subject = subject
	snap.CatalogNumber = catalogNumber
	snap.Term = term
	snap.ObservedAt = time.Now().UTC()
	return snap, nil
}

type sentMessage struct {
	recipient string
	kind      models.EventKind
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendEvent(ctx context.Context, recipient string, state *models.ClassState, event models.NotificationEvent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipient, event.Kind})
	return "msg-1", nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func mustSubscribe(t *testing.T, st *store.Store, ctx context.Context, platform, userID, classKey string) {
	t.Helper()
	_, err := st.Subscribe(ctx, platform, userID, classKey)
	require.NoError(t, err)
}

func newTestMonitor(t *testing.T, source Source, sender senders.Sender) (*Monitor, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One connection keeps every goroutine on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ClassState{}, &models.Subscription{}))

	st := store.New(db, zap.NewNop())
	return newMonitorOver(st, source, sender), st
}

// newMonitorOver builds a monitor around an existing store, so tests can run
// two monitors against one database the way the bot and ops processes do.
func newMonitorOver(st *store.Store, source Source, sender senders.Sender) *Monitor {
	m := &Monitor{
		cfg:           &config.Config{Term: "26W"},
		log:           zap.NewNop(),
		store:         st,
		source:        source,
		senders:       senders.Registry{models.PlatformDiscord: sender},
		locks:         newKeyLocks(),
		done:          make(chan struct{}),
		concurrency:   2,
		pollInterval:  time.Minute,
		scrapeTimeout: time.Second,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

func TestFirstCheckEstablishesBaselineSilently(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusFull, Enrolled: 30, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")

	result, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Empty(t, result.Attempts)
	assert.Empty(t, sender.sent)

	state, err := st.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.StatusFull, state.Status)
}

func TestStatusChangeNotifiesEverySubscriberExactlyOnce(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusFull, Enrolled: 30, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-2", "PSYCH_124G_26W")

	_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	// The class opens up.
	source.snap = models.Snapshot{Status: models.StatusOpen, Enrolled: 28, Capacity: 30}
	result, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventStatusChanged, result.Events[0].Kind)
	assert.ElementsMatch(t, []sentMessage{
		{"user-1", models.EventStatusChanged},
		{"user-2", models.EventStatusChanged},
	}, sender.sent)

	// Re-checking the unchanged class stays silent.
	result, err = m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Len(t, sender.sent, 2)
}

func TestScrapeFailureLeavesStateUntouched(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusOpen, Enrolled: 10, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	before, err := st.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	source.err = errors.New("timed out")
	_, err = m.CheckClass(ctx, "PSYCH_124G_26W")
	require.Error(t, err)

	after, err := st.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.True(t, after.LastChecked.Equal(before.LastChecked))
	assert.Empty(t, sender.sent)
}

func TestMalformedSnapshotIsRejectedWithoutMutation(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusOpen, Enrolled: 10, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	source.snap = models.Snapshot{Status: models.StatusOpen, Enrolled: -3, Capacity: 30}
	_, err = m.CheckClass(ctx, "PSYCH_124G_26W")
	require.Error(t, err)

	state, err := st.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Enrolled)
}

func TestDeliveryFailureDoesNotStopOtherSubscribers(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusFull, Enrolled: 30, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	// No sender is registered for this platform; its delivery must fail
	// without affecting the discord subscriber.
	mustSubscribe(t, st, ctx, "carrier-pigeon", "user-9", "PSYCH_124G_26W")

	_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	source.snap = models.Snapshot{Status: models.StatusOpen, Enrolled: 28, Capacity: 30}
	result, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	require.Len(t, result.Attempts, 2)
	var failed, delivered int
	for _, attempt := range result.Attempts {
		if attempt.Err != nil {
			failed++
		} else {
			delivered++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []sentMessage{{"user-1", models.EventStatusChanged}}, sender.sent)
}

// barrierSource holds every fetch until all expected callers arrive, so two
// competing writers are guaranteed to scrape before either commits.
type barrierSource struct {
	fakeSource
	ready *sync.WaitGroup
}

func (b *barrierSource) FetchSnapshot(ctx context.Context, subject, catalogNumber, term string) (models.Snapshot, error) {
	b.ready.Done()
	b.ready.Wait()
	return b.fakeSource.FetchSnapshot(ctx, subject, catalogNumber, term)
}

// gateSource signals when a fetch begins and blocks it until released.
type gateSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
}

func (g *gateSource) FetchSnapshot(ctx context.Context, subject, catalogNumber, term string) (models.Snapshot, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeSource.FetchSnapshot(ctx, subject, catalogNumber, term)
}

func TestConcurrentChecksOnOneClassNotifyExactlyOnce(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusFull, Enrolled: 30, Capacity: 30}}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, source, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	// The class opens, then a poll cycle and a burst of on-demand checks all
	// race on the same key.
	source.snap = models.Snapshot{Status: models.StatusOpen, Enrolled: 28, Capacity: 30}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, []sentMessage{{"user-1", models.EventStatusChanged}}, sender.messages())
}

func TestCompetingWritersDispatchAtMostOnce(t *testing.T) {
	baseline := &fakeSource{snap: models.Snapshot{Status: models.StatusFull, Enrolled: 30, Capacity: 30}}
	sender := &fakeSender{}
	m1, st := newTestMonitor(t, baseline, sender)
	// A second monitor with its own key locks, like the ops process sharing
	// the database: only the store's compare-and-swap separates them.
	m2 := newMonitorOver(st, baseline, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	_, err := m1.CheckClass(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	// Both writers scrape the opened class before either one commits.
	ready := &sync.WaitGroup{}
	ready.Add(2)
	open := models.Snapshot{Status: models.StatusOpen, Enrolled: 28, Capacity: 30}
	m1.source = &barrierSource{fakeSource{snap: open}, ready}
	m2.source = &barrierSource{fakeSource{snap: open}, ready}

	errs := make(chan error, 2)
	for _, m := range []*Monitor{m1, m2} {
		go func(m *Monitor) {
			_, err := m.CheckClass(ctx, "PSYCH_124G_26W")
			errs <- err
		}(m)
	}
	for i := 0; i < 2; i++ {
		// The loser of the commit race either sees the fresh state (silent)
		// or fails with ErrStaleState; it must not dispatch.
		if err := <-errs; err != nil {
			assert.ErrorIs(t, err, store.ErrStaleState)
		}
	}

	assert.Equal(t, []sentMessage{{"user-1", models.EventStatusChanged}}, sender.messages())
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	gate := &gateSource{
		fakeSource: fakeSource{snap: models.Snapshot{Status: models.StatusOpen, Enrolled: 10, Capacity: 30}},
		entered:    make(chan struct{}, 8),
		release:    make(chan struct{}),
	}
	sender := &fakeSender{}
	m, st := newTestMonitor(t, gate, sender)
	ctx := context.Background()

	mustSubscribe(t, st, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")

	m.pollInterval = 5 * time.Millisecond
	go m.Start()
	<-gate.entered // a cycle is now mid-scrape

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
}

func TestStopBeforeLoopRunsStillTerminates(t *testing.T) {
	source := &fakeSource{snap: models.Snapshot{Status: models.StatusOpen, Enrolled: 10, Capacity: 30}}
	m, _ := newTestMonitor(t, source, &fakeSender{})

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	go m.Start()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not observe loop shutdown")
	}
}
