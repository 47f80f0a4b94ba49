// Package sse implements Server-Sent Events for the connectivity banner and
// sync notifications.
package sse

import (
	"fmt"
	"strings"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnectivityChanged is sent when the remote verdict changes status.
	EventConnectivityChanged EventType = "connectivity.changed"

	// EventSyncDegraded is sent when a read or write fell back to the local cache.
	EventSyncDegraded EventType = "sync.degraded"
	// EventSyncReconciled is sent after a reconciliation pass pushed pending writes.
	EventSyncReconciled EventType = "sync.reconciled"

	// EventProductSaved represents a product creation or update.
	EventProductSaved EventType = "product.saved"
	// EventMeasurementRecorded is sent to the measuring user only.
	EventMeasurementRecorded EventType = "measurement.recorded"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Topic groups event types a subscriber can ask for.
type Topic string

// Topics.
const (
	TopicConnectivity Topic = "connectivity"
	TopicSync         Topic = "sync"
	TopicCatalog      Topic = "catalog"
	TopicMeasurements Topic = "measurements"
)

var topics = map[EventType]Topic{
	EventConnectivityChanged: TopicConnectivity,
	EventSyncDegraded:        TopicSync,
	EventSyncReconciled:      TopicSync,
	EventProductSaved:        TopicCatalog,
	EventMeasurementRecorded: TopicMeasurements,
}

// Topic returns the topic t is delivered under. Heartbeats have none.
func (t EventType) Topic() Topic {
	return topics[t]
}

// ParseTopics reads a comma separated topic list such as "sync,connectivity".
// An empty string yields no topics.
func ParseTopics(s string) ([]Topic, error) {
	var out []Topic
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch t := Topic(part); t {
		case TopicConnectivity, TopicSync, TopicCatalog, TopicMeasurements:
			out = append(out, t)
		default:
			return nil, fmt.Errorf("unknown topic %q", part)
		}
	}
	return out, nil
}

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
	// UserID limits delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// ConnectivityEventData is the payload of connectivity.changed.
type ConnectivityEventData struct {
	CheckedAt time.Time           `json:"checked_at"`
	Status    connectivity.Status `json:"status"`
	Previous  connectivity.Status `json:"previous"`
	Message   string              `json:"message,omitempty"`
}

// SyncDegradedEventData is the payload of sync.degraded.
type SyncDegradedEventData struct {
	Collection string `json:"collection"`
	Key        string `json:"key,omitempty"`
	Op         string `json:"op"`
	Reason     string `json:"reason"`
	Pending    bool   `json:"pending"`
}

// SyncReconciledEventData is the payload of sync.reconciled.
type SyncReconciledEventData struct {
	Pushed    int `json:"pushed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// ProductEventData is the payload of product.saved.
type ProductEventData struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// MeasurementEventData is the payload of measurement.recorded.
type MeasurementEventData struct {
	MeasurementID string `json:"measurement_id"`
	SleepScore    int    `json:"sleep_score"`
	ComfortScore  int    `json:"comfort_score"`
	PostureScore  int    `json:"posture_score"`
}

// HeartbeatEventData is the payload of heartbeat.
type HeartbeatEventData struct {
	ServerTime   time.Time           `json:"server_time"`
	Connectivity connectivity.Status `json:"connectivity"`
}

// NewConnectivityChangedEvent creates a connectivity.changed event.
func NewConnectivityChangedEvent(prev, next connectivity.Verdict) Event {
	return Event{
		Type: EventConnectivityChanged,
		Data: ConnectivityEventData{
			CheckedAt: next.CheckedAt,
			Status:    next.Status,
			Previous:  prev.Status,
			Message:   next.Message,
		},
		Timestamp: time.Now(),
	}
}

// NewSyncDegradedEvent creates a sync.degraded event.
func NewSyncDegradedEvent(collection, key, op, reason string, pending bool) Event {
	return Event{
		Type: EventSyncDegraded,
		Data: SyncDegradedEventData{
			Collection: collection,
			Key:        key,
			Op:         op,
			Reason:     reason,
			Pending:    pending,
		},
		Timestamp: time.Now(),
	}
}

// NewSyncReconciledEvent creates a sync.reconciled event.
func NewSyncReconciledEvent(pushed, failed, dropped, remaining int) Event {
	return Event{
		Type: EventSyncReconciled,
		Data: SyncReconciledEventData{
			Pushed:    pushed,
			Failed:    failed,
			Dropped:   dropped,
			Remaining: remaining,
		},
		Timestamp: time.Now(),
	}
}

// NewProductSavedEvent creates a product.saved event.
func NewProductSavedEvent(productID int64, name string) Event {
	return Event{
		Type:      EventProductSaved,
		Data:      ProductEventData{ID: productID, Name: name},
		Timestamp: time.Now(),
	}
}

// NewMeasurementRecordedEvent creates a measurement.recorded event for one user.
func NewMeasurementRecordedEvent(userID, measurementID string, sleep, comfort, posture int) Event {
	return Event{
		Type: EventMeasurementRecorded,
		Data: MeasurementEventData{
			MeasurementID: measurementID,
			SleepScore:    sleep,
			ComfortScore:  comfort,
			PostureScore:  posture,
		},
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event carrying the last known
// connectivity status.
func NewHeartbeatEvent(status connectivity.Status) Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now(), Connectivity: status},
		Timestamp: time.Now(),
	}
}
