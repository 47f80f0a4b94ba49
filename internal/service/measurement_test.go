package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/scoring"
	"github.com/sleepwell/sleepwell-server/internal/sse"
)

func idealBackSleeper() MeasurementInput {
	return MeasurementInput{NeckLength: 5, NeckWidth: 7, SleepPosition: domain.SleepBack}
}

func TestMeasurementService_RecordScoresAndUpdatesProfile(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	m, out, err := ts.measurements.Record(ctx, "user-1", idealBackSleeper())
	require.NoError(t, err)
	assert.False(t, out.Degraded())

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "user-1", m.UserID)
	assert.Equal(t, domain.SourceManual, m.Source)
	assert.Equal(t, 98, m.SleepScore)
	assert.Equal(t, 85, m.ComfortScore)
	assert.Equal(t, 97, m.PostureScore)
	assert.False(t, m.CreatedAt.IsZero())

	_, ok := ts.remote.Row(domain.CollectionMeasurements, m.ID)
	assert.True(t, ok)

	profile, _, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 98, profile.SleepScore)
	assert.Equal(t, 85, profile.ComfortScore)
	assert.Equal(t, 97, profile.PostureScore)

	recorded := ts.events.ofType(sse.EventMeasurementRecorded)
	require.Len(t, recorded, 1)
	assert.Equal(t, "user-1", recorded[0].UserID)
}

func TestMeasurementService_RecordKeepsExistingProfileFields(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	name := "Ada"
	_, _, err := ts.profiles.UpdateProfile(ctx, "user-1", UpdateProfileRequest{Name: &name})
	require.NoError(t, err)

	_, _, err = ts.measurements.Record(ctx, "user-1", MeasurementInput{
		NeckLength:    3,
		NeckWidth:     9,
		SleepPosition: domain.SleepStomach,
	})
	require.NoError(t, err)

	profile, _, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, 54, profile.SleepScore)
	assert.Equal(t, 60, profile.ComfortScore)
	assert.Equal(t, 57, profile.PostureScore)
}

func TestMeasurementService_RecordRejectsOutOfRange(t *testing.T) {
	ts := setupTestServices(t)

	_, _, err := ts.measurements.Record(context.Background(), "user-1", MeasurementInput{
		NeckLength:    1,
		NeckWidth:     7,
		SleepPosition: domain.SleepBack,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	assert.Zero(t, ts.remote.Len(domain.CollectionMeasurements))
	assert.Zero(t, ts.remote.Len(domain.CollectionProfiles))
}

func TestMeasurementService_RecordWhileDisconnected(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()
	ts.down(t)

	m, out, err := ts.measurements.Record(ctx, "user-1", idealBackSleeper())
	require.NoError(t, err)
	assert.True(t, out.Degraded())
	assert.True(t, out.Pending)

	latest, _, err := ts.measurements.Latest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, latest.ID)

	ts.up(t)
	report, err := ts.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pushed) // measurement and profile

	_, ok := ts.remote.Row(domain.CollectionMeasurements, m.ID)
	assert.True(t, ok)
}

func TestMeasurementService_OfflineScoresKeepRemoteProfileFields(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	ts.remote.Seed(domain.CollectionProfiles, "user-1", domain.UserProfile{
		ID:           "user-1",
		Name:         "Alice",
		Email:        "alice@example.com",
		Address:      "1 Pillow Lane",
		RoutineTasks: []domain.RoutineTask{{ID: "t1", Title: "Dim the lights"}},
		SleepScore:   40,
	})
	ts.down(t)

	_, out, err := ts.measurements.Record(ctx, "user-1", idealBackSleeper())
	require.NoError(t, err)
	assert.True(t, out.Degraded())

	ts.up(t)
	_, err = ts.coord.Reconcile(ctx)
	require.NoError(t, err)

	raw, ok := ts.remote.Row(domain.CollectionProfiles, "user-1")
	require.True(t, ok)
	var stored domain.UserProfile
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "1 Pillow Lane", stored.Address)
	require.Len(t, stored.RoutineTasks, 1)
	assert.Equal(t, 98, stored.SleepScore)
	assert.Equal(t, 85, stored.ComfortScore)
	assert.Equal(t, 97, stored.PostureScore)

	// The merged row also replaced the placeholder in the cache.
	ts.down(t)
	cached, _, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", cached.Name)
	assert.Equal(t, 98, cached.SleepScore)
}

func TestMeasurementService_HistoryNewestFirst(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		m, _, err := ts.measurements.Record(ctx, "user-1", idealBackSleeper())
		require.NoError(t, err)
		ids = append(ids, m.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, _, err := ts.measurements.Record(ctx, "user-2", idealBackSleeper())
	require.NoError(t, err)

	history, _, err := ts.measurements.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{history[0].ID, history[1].ID, history[2].ID})

	latest, _, err := ts.measurements.Latest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
}

func TestMeasurementService_LatestWithoutMeasurements(t *testing.T) {
	ts := setupTestServices(t)

	_, _, err := ts.measurements.Latest(context.Background(), "nobody")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestMeasurementService_ScoreAndPreview(t *testing.T) {
	ts := setupTestServices(t)

	scores, err := ts.measurements.Score(idealBackSleeper())
	require.NoError(t, err)
	assert.Equal(t, scoring.Scores{Sleep: 98, Comfort: 85, Posture: 97}, scores)

	preview, err := ts.measurements.PreviewScore(idealBackSleeper())
	require.NoError(t, err)
	assert.Equal(t, 95, preview)

	_, err = ts.measurements.PreviewScore(MeasurementInput{NeckLength: 5, NeckWidth: 7, SleepPosition: "upside-down"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	assert.Zero(t, ts.remote.Calls("upsert"))
}
