package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/scoring"
	"github.com/sleepwell/sleepwell-server/internal/sync"
)

func TestProfileService_GetMissing(t *testing.T) {
	ts := setupTestServices(t)

	_, _, err := ts.profiles.GetProfile(context.Background(), "ghost")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestProfileService_UpdateProfileCreatesAndMerges(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	name := "Ada"
	email := "ada@example.com"
	p, _, err := ts.profiles.UpdateProfile(ctx, "user-1", UpdateProfileRequest{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	pos := domain.SleepSide
	p, _, err = ts.profiles.UpdateProfile(ctx, "user-1", UpdateProfileRequest{SleepPosition: &pos})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, domain.SleepSide, p.SleepPosition)

	var stored domain.UserProfile
	raw, ok := ts.remote.Row(domain.CollectionProfiles, "user-1")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, domain.SleepSide, stored.SleepPosition)
}

func TestProfileService_UpdateProfileValidates(t *testing.T) {
	ts := setupTestServices(t)

	bad := "not-an-email"
	_, _, err := ts.profiles.UpdateProfile(context.Background(), "user-1", UpdateProfileRequest{Email: &bad})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	assert.Zero(t, ts.remote.Len(domain.CollectionProfiles))
}

func TestProfileService_UpdateRoutineTasks(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	tasks := []domain.RoutineTask{
		{ID: "t1", Title: "Dim the lights", Time: "21:30"},
		{ID: "t2", Title: "No screens", Completed: true},
	}
	p, _, err := ts.profiles.UpdateRoutineTasks(ctx, "user-1", tasks)
	require.NoError(t, err)
	assert.Equal(t, tasks, p.RoutineTasks)

	got, _, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.RoutineTasks, 2)
	assert.True(t, got.RoutineTasks[1].Completed)
}

func TestProfileService_ApplyScoresWhileDisconnected(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()
	ts.down(t)

	out, err := ts.profiles.ApplyScores(ctx, "user-1", scoring.Scores{Sleep: 80, Comfort: 70, Posture: 60})
	require.NoError(t, err)
	assert.True(t, out.Degraded())
	assert.True(t, out.Pending)

	p, out, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sync.PathLocal, out.Path)
	assert.Equal(t, 80, p.SleepScore)
}

func TestProfileService_OfflineUpdateMergesOnRead(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	ts.remote.Seed(domain.CollectionProfiles, "user-1", domain.UserProfile{
		ID:       "user-1",
		Name:     "Alice",
		Email:    "alice@example.com",
		Location: "Lisbon",
	})
	ts.down(t)

	phone := "+351 555 0100"
	p, out, err := ts.profiles.UpdateProfile(ctx, "user-1", UpdateProfileRequest{Phone: &phone})
	require.NoError(t, err)
	assert.True(t, out.Pending)
	assert.Equal(t, phone, p.Phone)

	ts.up(t)
	got, out, err := ts.profiles.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sync.PathRemote, out.Path)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "Lisbon", got.Location)
	assert.Equal(t, phone, got.Phone)

	pending, err := ts.coord.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestProfileService_OfflinePatchesAccumulate(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	ts.remote.Seed(domain.CollectionProfiles, "user-1", domain.UserProfile{ID: "user-1", Name: "Alice"})
	ts.down(t)

	_, err := ts.profiles.ApplyScores(ctx, "user-1", scoring.Scores{Sleep: 80, Comfort: 70, Posture: 60})
	require.NoError(t, err)
	tasks := []domain.RoutineTask{{ID: "t1", Title: "Read a chapter"}}
	_, _, err = ts.profiles.UpdateRoutineTasks(ctx, "user-1", tasks)
	require.NoError(t, err)

	ts.up(t)
	report, err := ts.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)

	raw, ok := ts.remote.Row(domain.CollectionProfiles, "user-1")
	require.True(t, ok)
	var stored domain.UserProfile
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, 80, stored.SleepScore)
	assert.Equal(t, tasks, stored.RoutineTasks)
}

func TestProfileService_OfflineProfileForNewUserIsWrittenWhole(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()
	ts.down(t)

	name := "Bea"
	_, _, err := ts.profiles.UpdateProfile(ctx, "user-2", UpdateProfileRequest{Name: &name})
	require.NoError(t, err)

	ts.up(t)
	_, err = ts.coord.Reconcile(ctx)
	require.NoError(t, err)

	raw, ok := ts.remote.Row(domain.CollectionProfiles, "user-2")
	require.True(t, ok)
	var stored domain.UserProfile
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "Bea", stored.Name)
	assert.True(t, stored.Notifications)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestChatService_RoundTrip(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()

	h, _, err := ts.chat.GetHistory(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(h.Messages))

	msgs := json.RawMessage(`[{"role":"user","text":"which pillow for side sleepers?"}]`)
	_, out, err := ts.chat.SaveHistory(ctx, "user-1", msgs)
	require.NoError(t, err)
	assert.False(t, out.Degraded())

	_, ok := ts.remote.Row(domain.CollectionChatHistory, "user-1")
	assert.True(t, ok)

	h, _, err = ts.chat.GetHistory(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(msgs), string(h.Messages))
}

func TestChatService_RejectsInvalidJSON(t *testing.T) {
	ts := setupTestServices(t)

	_, _, err := ts.chat.SaveHistory(context.Background(), "user-1", json.RawMessage(`[{`))
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestSyncService_StatusAndReconcile(t *testing.T) {
	ts := setupTestServices(t)
	ctx := context.Background()
	ts.down(t)

	_, _, err := ts.chat.SaveHistory(ctx, "user-1", json.RawMessage(`["hi"]`))
	require.NoError(t, err)

	status, err := ts.sync.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 1, status.Collections[domain.CollectionChatHistory])
	assert.NotContains(t, status.Collections, sync.PendingCollection)
	assert.False(t, status.Verdict.Connected())

	ts.up(t)
	report, err := ts.sync.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)

	status, err = ts.sync.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Pending)
}
