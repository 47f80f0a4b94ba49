package sse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Subscriber) Event {
	t.Helper()
	select {
	case e := <-c.Events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Subscriber) {
	t.Helper()
	select {
	case e := <-c.Events:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_BroadcastReachesEveryone(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	guest, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Stats().Subscribers)

	prev := connectivity.Verdict{Status: connectivity.StatusConnected}
	next := connectivity.Verdict{Status: connectivity.StatusUnreachable, Message: "timeout"}
	m.Emit(NewConnectivityChangedEvent(prev, next))

	for _, c := range []*Subscriber{alice, guest} {
		e := receive(t, c)
		assert.Equal(t, EventConnectivityChanged, e.Type)
		data, ok := e.Data.(ConnectivityEventData)
		require.True(t, ok)
		assert.Equal(t, connectivity.StatusUnreachable, data.Status)
		assert.Equal(t, connectivity.StatusConnected, data.Previous)
	}
}

func TestManager_UserEventsAreFiltered(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	bob, err := m.Connect("bob")
	require.NoError(t, err)

	m.Emit(NewMeasurementRecordedEvent("alice", "m1", 80, 70, 90))

	e := receive(t, alice)
	assert.Equal(t, EventMeasurementRecorded, e.Type)
	assertNoEvent(t, bob)
}

func TestManager_EmitIgnoresForeignTypes(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect("")
	require.NoError(t, err)

	m.Emit("not an event")
	assertNoEvent(t, c)
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))

	c, err := m.Connect("alice")
	require.NoError(t, err)
	m.Disconnect(c.ID)
	m.Disconnect(c.ID)

	assert.Zero(t, m.Stats().Subscribers)
	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_ShutdownDropsLaterEvents(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))

	_, err := m.Connect("")
	require.NoError(t, err)

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, m.Shutdown(shutdownCtx))
	assert.Zero(t, m.Stats().Subscribers)

	// Emitting after shutdown must not panic on the closed channel.
	m.Emit(NewSyncReconciledEvent(1, 0, 0, 0))
	require.NoError(t, m.Shutdown(shutdownCtx))
}

func TestManager_TopicsNarrowDelivery(t *testing.T) {
	m := startManager(t)

	banner, err := m.Connect("", TopicConnectivity)
	require.NoError(t, err)
	all, err := m.Connect("")
	require.NoError(t, err)

	m.Emit(NewProductSavedEvent(7, "Cloud"))
	m.Emit(NewConnectivityChangedEvent(connectivity.Verdict{}, connectivity.Verdict{Status: connectivity.StatusConnected}))

	assert.Equal(t, EventProductSaved, receive(t, all).Type)
	assert.Equal(t, EventConnectivityChanged, receive(t, all).Type)
	assert.Equal(t, EventConnectivityChanged, receive(t, banner).Type)
	assertNoEvent(t, banner)
}

func TestManager_RepeatedDegradedNoticesAreSuppressed(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect("", TopicSync)
	require.NoError(t, err)

	m.Emit(NewSyncDegradedEvent("products", "1", "get", "remote unavailable", false))
	m.Emit(NewSyncDegradedEvent("products", "2", "get", "remote unavailable", false))
	m.Emit(NewSyncDegradedEvent("products", "", "list", "remote unavailable", false))

	assert.Equal(t, "get", receive(t, c).Data.(SyncDegradedEventData).Op)
	assert.Equal(t, "list", receive(t, c).Data.(SyncDegradedEventData).Op)
	assertNoEvent(t, c)

	// A reconciliation pass starts a fresh round of notices.
	m.Emit(NewSyncReconciledEvent(2, 0, 0, 0))
	m.Emit(NewSyncDegradedEvent("products", "3", "get", "remote unavailable", false))

	assert.Equal(t, EventSyncReconciled, receive(t, c).Type)
	assert.Equal(t, EventSyncDegraded, receive(t, c).Type)
	assert.Equal(t, uint64(1), m.Stats().Suppressed)
}

func TestManager_TracksConnectivityStatus(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, connectivity.StatusUnknown, m.Status())

	m.Emit(NewConnectivityChangedEvent(
		connectivity.Verdict{Status: connectivity.StatusConnected},
		connectivity.Verdict{Status: connectivity.StatusUnreachable}))
	receive(t, c)

	assert.Equal(t, connectivity.StatusUnreachable, m.Status())
}

func TestParseTopics(t *testing.T) {
	got, err := ParseTopics(" sync, connectivity ,")
	require.NoError(t, err)
	assert.Equal(t, []Topic{TopicSync, TopicConnectivity}, got)

	got, err = ParseTopics("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseTopics("sync,weather")
	assert.ErrorContains(t, err, "weather")
}

func TestEventType_Topic(t *testing.T) {
	assert.Equal(t, TopicSync, EventSyncReconciled.Topic())
	assert.Equal(t, TopicMeasurements, EventMeasurementRecorded.Topic())
	assert.Equal(t, Topic(""), EventHeartbeat.Topic())
}
