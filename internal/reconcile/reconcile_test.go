package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coherence/internal/classify"
	"github.com/roach88/coherence/internal/kv"
	"github.com/roach88/coherence/internal/testutil"
	"github.com/roach88/coherence/internal/version"
)

var (
	prev    = version.Marker{AppVersion: "3.8.0", SchemaVersion: 11}
	current = version.Marker{AppVersion: "3.9.0", SchemaVersion: 12}
)

func newReconciler(durable, session kv.Store) *Reconciler {
	return New(Config{
		Provider:   kv.NewProvider(durable, session),
		Classifier: classify.MustNew(classify.DefaultPolicy()),
		Clock:      testutil.NewFakeClock(),
	})
}

func TestRun_Scenario(t *testing.T) {
	ctx := context.Background()
	durable := kv.NewMemoryFrom(map[string]string{
		"token":          "abc",
		"cached_recipes": "[...]",
		"unrelated_flag": "x",
		"app_version":    "3.8.0",
		"schema_version": "11",
	})

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, version.ReasonAppVersionChanged)

	assert.True(t, rec.Triggered)
	assert.Equal(t, []string{"cached_recipes"}, rec.ClearedKeys)
	assert.Equal(t, 1, rec.ClearedKeyCount())
	assert.Equal(t, 1, rec.Preserved)
	assert.Empty(t, rec.Failures)
	assert.Equal(t, "3.8.0", rec.PreviousAppVersion())
	assert.Equal(t, 11, rec.PreviousSchemaVersion())
	assert.Equal(t, testutil.Epoch, rec.Timestamp)

	assert.Equal(t, map[string]string{
		"token":          "abc",
		"unrelated_flag": "x",
		"app_version":    "3.9.0",
		"schema_version": "12",
		"last_update":    "2026-10-15T08:30:00.000Z",
	}, durable.Snapshot())
}

func TestRun_PreservationRoundTrip(t *testing.T) {
	ctx := context.Background()
	seed := map[string]string{}
	for _, k := range classify.DefaultPolicy().Preserve {
		seed[k] = "value-of-" + k + " \x00 ünïcode"
	}
	durable := kv.NewMemoryFrom(seed)

	newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	got := durable.Snapshot()
	for k, v := range seed {
		assert.Equal(t, v, got[k], k)
	}
}

func TestRun_PurgeCompleteness(t *testing.T) {
	ctx := context.Background()
	purgeKeys := []string{
		"cached_recipes", "cached_articles", "cached_workouts", "cached_videos",
		"daily_summary", "challenges", "appointments", "notifications_read",
		"cached_feed_page_2", "workout_17", "steps_weekly_41", "tmp_photo", "temp_x", "cache:api",
	}
	seed := map[string]string{}
	for _, k := range purgeKeys {
		seed[k] = "stale"
	}
	durable := kv.NewMemoryFrom(seed)

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	assert.ElementsMatch(t, purgeKeys, rec.ClearedKeys)
	for _, k := range purgeKeys {
		_, ok, _ := durable.Get(ctx, k)
		assert.False(t, ok, k)
	}
}

func TestRun_UnclassifiedStability(t *testing.T) {
	ctx := context.Background()
	durable := kv.NewMemoryFrom(map[string]string{
		"unrelated_flag": "x",
		"feature_toggle": `{"beta":true}`,
	})

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	assert.Empty(t, rec.ClearedKeys)
	v, _, _ := durable.Get(ctx, "unrelated_flag")
	assert.Equal(t, "x", v)
	v, _, _ = durable.Get(ctx, "feature_toggle")
	assert.Equal(t, `{"beta":true}`, v)
}

func TestRun_ReservedKeysUntouched(t *testing.T) {
	ctx := context.Background()
	durable := testutil.NewFaultyStore(kv.NewMemoryFrom(map[string]string{
		LockKey:       "someone|2099-01-01T00:00:00Z",
		"last_update": "2020-01-01T00:00:00.000Z",
	}))

	newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	assert.Empty(t, durable.Deletes(), "reserved keys are never deleted")
	v, _, _ := durable.Get(ctx, LockKey)
	assert.Equal(t, "someone|2099-01-01T00:00:00Z", v)
}

func TestRun_SessionHeuristic(t *testing.T) {
	ctx := context.Background()
	session := kv.NewMemoryFrom(map[string]string{
		"auth_state":       "ok",
		"session_id":       "s1",
		"current_user":     "{}",
		"scroll_pos":       "120",
		"force_refresh":    "1",
		"update_timestamp": "2026-01-01T00:00:00.000Z",
	})

	rec := newReconciler(kv.NewMemory(), session).Run(ctx, current, &prev, "")

	assert.Equal(t, []string{"force_refresh", "scroll_pos", "update_timestamp"}, rec.ClearedSessionKeys)
	assert.Equal(t, map[string]string{
		"auth_state":   "ok",
		"session_id":   "s1",
		"current_user": "{}",
	}, session.Snapshot())
}

// cascadingStore deletes a preserved key as a side effect of a purge,
// standing in for a producer that shares storage between keys.
type cascadingStore struct {
	*kv.Memory
	trigger, victim string
}

func (c *cascadingStore) Delete(ctx context.Context, key string) error {
	if key == c.trigger {
		_ = c.Memory.Delete(ctx, c.victim)
	}
	return c.Memory.Delete(ctx, key)
}

func TestRun_RestoreRecoversAccidentalLoss(t *testing.T) {
	ctx := context.Background()
	durable := &cascadingStore{
		Memory:  kv.NewMemoryFrom(map[string]string{"token": "abc", "cached_recipes": "[]"}),
		trigger: "cached_recipes",
		victim:  "token",
	}

	newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	v, ok, _ := durable.Get(ctx, "token")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestRun_PartialFailureContinues(t *testing.T) {
	ctx := context.Background()
	durable := testutil.NewFaultyStore(kv.NewMemoryFrom(map[string]string{
		"cached_articles": "a",
		"cached_recipes":  "r",
		"cached_videos":   "v",
		"token":           "abc",
	})).FailDelete("cached_recipes")

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	assert.Equal(t, []string{"cached_articles", "cached_videos"}, rec.ClearedKeys)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, StagePurge, rec.Failures[0].Stage)
	assert.Equal(t, "cached_recipes", rec.Failures[0].Key)
	assert.ErrorIs(t, rec.Failures[0], testutil.ErrInjected)

	// marker still written
	m, ok, err := version.NewRegistry(durable, nil).Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, current, m)
}

func TestRun_SnapshotReadFailure(t *testing.T) {
	ctx := context.Background()
	durable := testutil.NewFaultyStore(kv.NewMemoryFrom(map[string]string{
		"token": "abc",
		"user":  "{}",
	})).FailGet("token")

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	assert.Equal(t, 1, rec.Preserved)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, StageSnapshot, rec.Failures[0].Stage)

	// an unreadable preserve key is not a purge key, so it survives anyway
	_, ok, _ := durable.Store.Get(ctx, "token")
	assert.True(t, ok)
}

func TestRun_RestoreFailureRecorded(t *testing.T) {
	ctx := context.Background()
	durable := testutil.NewFaultyStore(kv.NewMemoryFrom(map[string]string{
		"token": "abc",
		"theme": "dark",
	})).FailSet("token")

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, &prev, "")

	require.Len(t, rec.Failures, 1)
	assert.Equal(t, StageRestore, rec.Failures[0].Stage)
	assert.Equal(t, "token", rec.Failures[0].Key)
	v, _, _ := durable.Get(ctx, "theme")
	assert.Equal(t, "dark", v)
}

func TestRun_SessionEnumerationFailure(t *testing.T) {
	ctx := context.Background()
	durable := kv.NewMemoryFrom(map[string]string{"cached_recipes": "r"})
	session := testutil.NewFaultyStore(kv.NewMemory()).FailKeys()

	rec := newReconciler(durable, session).Run(ctx, current, &prev, "")

	assert.Equal(t, []string{"cached_recipes"}, rec.ClearedKeys)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, StageSession, rec.Failures[0].Stage)
	assert.Equal(t, "", rec.Failures[0].Key)
	assert.Equal(t, "session: injected storage failure", rec.Failures[0].Error())
}

func TestRun_MarkerWriteFailureRecorded(t *testing.T) {
	ctx := context.Background()
	durable := testutil.NewFaultyStore(kv.NewMemory()).FailSet(version.KeyAppVersion)

	rec := newReconciler(durable, kv.NewMemory()).Run(ctx, current, nil, "manual")

	require.Len(t, rec.Failures, 1)
	assert.Equal(t, StageMarker, rec.Failures[0].Stage)
	assert.Nil(t, rec.Previous)
	assert.Equal(t, "", rec.PreviousAppVersion())
	assert.Equal(t, 0, rec.PreviousSchemaVersion())
}

func TestKeyError_Format(t *testing.T) {
	err := &KeyError{Stage: StagePurge, Key: "cached_recipes", Err: testutil.ErrInjected}
	assert.Equal(t, `purge "cached_recipes": injected storage failure`, err.Error())
}
