package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Handler handles SSE connections at GET /api/v1/connectivity/stream.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
	initial func() Event
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// SetInitial registers a function producing the event every client receives
// right after connecting, so it starts from the current state.
func (h *Handler) SetInitial(fn func() Event) {
	h.initial = fn
}

// ServeHTTP handles the SSE connection. The optional user_id query parameter
// subscribes the client to that user's events and topics narrows the stream,
// e.g. ?topics=sync,connectivity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	topics, err := ParseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, err := h.manager.Connect(r.URL.Query().Get("user_id"), topics...)
	if err != nil {
		h.logger.Error("failed to register subscriber", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(sub.ID)

	log := h.logger.With(slog.String("subscriber_id", sub.ID))

	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"subscriber_id": sub.ID,
		"message":       "SSE connection established",
	}); err != nil {
		log.Warn("failed to send connection message", slog.String("error", err.Error()))
		return
	}

	if h.initial != nil {
		event := h.initial()
		if sub.wants(event) {
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				return
			}
		}
	}

	ctx := r.Context()
	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				log.Info("subscriber closed by manager")
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				log.Info("client went away during send")
				return
			}

		case <-sub.Done:
			log.Info("subscriber closed by manager")
			return

		case <-ctx.Done():
			return
		}
	}
}

// sendEvent writes one SSE frame and flushes it.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write so hung connections time out.
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		// SetWriteDeadline may not be supported by all ResponseWriters.
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
