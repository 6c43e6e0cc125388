package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ClassState{}, &models.Subscription{}))
	return New(db, zap.NewNop())
}

func someState(key string, checked time.Time) models.ClassState {
	subject, catalog, term := models.ParseClassKey(key)
	return models.ClassState{
		ClassKey:      key,
		Subject:       subject,
		CatalogNumber: catalog,
		Term:          term,
		Status:        models.StatusOpen,
		Enrolled:      10,
		Capacity:      30,
		LastChecked:   checked,
	}
}

func mustSubscribe(t *testing.T, s *Store, ctx context.Context, platform, userID, classKey string) {
	t.Helper()
	_, err := s.Subscribe(ctx, platform, userID, classKey)
	require.NoError(t, err)
}

func TestLoadMissingRowIsNil(t *testing.T) {
	s := newTestStore(t)
	state, err := s.LoadClassState(context.Background(), "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestCommitAndLoadRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	next := someState("PSYCH_124G_26W", t0)
	next.LastNotifiedEnrolled = sql.NullInt64{Int64: 10, Valid: true}
	require.NoError(t, s.CommitClassState(ctx, nil, next))

	loaded, err := s.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.StatusOpen, loaded.Status)
	assert.True(t, loaded.LastNotifiedEnrolled.Valid)
	assert.True(t, loaded.LastChecked.Equal(t0))
}

func TestCommitNullMarkerDistinctFromMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CommitClassState(ctx, nil, someState("MATH_31A_26W", time.Now().UTC())))

	loaded, err := s.LoadClassState(ctx, "MATH_31A_26W")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.LastNotifiedEnrolled.Valid)
}

func TestConcurrentBaselineInsertIsStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, s.CommitClassState(ctx, nil, someState("EE_101_26W", t0)))
	// Second writer that also saw "no previous state" must lose.
	err := s.CommitClassState(ctx, nil, someState("EE_101_26W", t0.Add(time.Minute)))
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestCommitDetectsStaleUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.CommitClassState(ctx, nil, someState("PSYCH_124G_26W", t0)))
	prev, err := s.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)

	// Another process commits in between.
	other := someState("PSYCH_124G_26W", t0.Add(time.Minute))
	require.NoError(t, s.CommitClassState(ctx, prev, other))

	// Our commit, still based on the older prev, must fail.
	next := someState("PSYCH_124G_26W", t0.Add(2*time.Minute))
	err = s.CommitClassState(ctx, prev, next)
	assert.ErrorIs(t, err, ErrStaleState)

	// Retrying against the fresh row succeeds.
	fresh, err := s.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.NoError(t, s.CommitClassState(ctx, fresh, next))
}

func TestSubscribeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Subscribe(ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Subscribe(ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.False(t, created)

	subs, err := s.SubscribersOf(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscriptionIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSubscribe(t, s, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	mustSubscribe(t, s, ctx, models.PlatformDiscord, "user-2", "PSYCH_124G_26W")
	mustSubscribe(t, s, ctx, models.PlatformEmail, "a@b.edu", "MATH_31A_26W")
	mustSubscribe(t, s, ctx, models.PlatformDiscord, "user-1", "MATH_31A_26W")

	subs, err := s.SubscribersOf(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	keys, err := s.ClassesOf(ctx, models.PlatformDiscord, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH_31A_26W", "PSYCH_124G_26W"}, keys)

	all, err := s.SubscribedClassKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH_31A_26W", "PSYCH_124G_26W"}, all)

	removed, err := s.Unsubscribe(ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Unsubscribe(ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.False(t, removed)

	subs, err = s.SubscribersOf(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestDeleteClassCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CommitClassState(ctx, nil, someState("PSYCH_124G_26W", time.Now().UTC())))
	mustSubscribe(t, s, ctx, models.PlatformDiscord, "user-1", "PSYCH_124G_26W")

	require.NoError(t, s.DeleteClassState(ctx, "PSYCH_124G_26W"))

	state, err := s.LoadClassState(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Nil(t, state)

	subs, err := s.SubscribersOf(ctx, "PSYCH_124G_26W")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
