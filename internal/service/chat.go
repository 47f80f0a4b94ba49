package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// ChatService stores each user's chat transcript as one opaque blob.
type ChatService struct {
	histories *sync.Repository[domain.ChatHistory]
	logger    *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(coord *sync.Coordinator, validator *validation.Validator, logger *slog.Logger) *ChatService {
	return &ChatService{
		histories: newChatRepository(coord, validator),
		logger:    logger,
	}
}

// GetHistory returns the user's transcript. A user without one gets an
// empty message list.
func (s *ChatService) GetHistory(ctx context.Context, userID string) (*domain.ChatHistory, sync.Outcome, error) {
	h, out, err := s.histories.Get(ctx, userID)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return &domain.ChatHistory{UserID: userID, Messages: json.RawMessage("[]")}, out, nil
	}
	return h, out, err
}

// SaveHistory replaces the user's transcript. messages must be valid JSON.
func (s *ChatService) SaveHistory(ctx context.Context, userID string, messages json.RawMessage) (*domain.ChatHistory, sync.Outcome, error) {
	if len(messages) == 0 {
		messages = json.RawMessage("[]")
	}
	if !json.Valid(messages) {
		return nil, sync.Outcome{}, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"messages": "must be valid JSON",
		})
	}

	h := &domain.ChatHistory{
		UserID:    userID,
		Messages:  messages,
		UpdatedAt: time.Now().UTC(),
	}

	out, err := s.histories.Save(ctx, h)
	if err != nil {
		return nil, out, err
	}

	s.logger.Debug("chat history saved", "user_id", userID, "bytes", len(messages), "state", out.State)
	return h, out, nil
}
