package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/scoring"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// ProfileService provides user profile management.
type ProfileService struct {
	profiles  *sync.Repository[domain.UserProfile]
	validator *validation.Validator
	logger    *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(coord *sync.Coordinator, validator *validation.Validator, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles:  newProfileRepository(coord, validator),
		validator: validator,
		logger:    logger,
	}
}

// GetProfile returns a user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, sync.Outcome, error) {
	return s.profiles.Get(ctx, userID)
}

// getOrNew returns the stored profile or a fresh one when none exists.
func (s *ProfileService) getOrNew(ctx context.Context, userID string) (*domain.UserProfile, sync.Outcome, error) {
	profile, out, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return profile, out, nil
	}
	if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, out, err
	}
	return domain.NewUserProfile(userID), out, nil
}

// UpdateProfileRequest contains optional fields to update.
type UpdateProfileRequest struct {
	Name          *string
	Email         *string
	Phone         *string
	Address       *string
	PhotoURL      *string
	Location      *string
	SleepPosition *domain.SleepPosition
	SleepTime     *string
	WakeTime      *string
	Notifications *bool
}

// UpdateProfile updates a user's profile, creating it if none exists. Only
// the fields set in req are written; a stale or missing local copy never
// overwrites the rest of the stored profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.UserProfile, sync.Outcome, error) {
	profile, getOut, err := s.getOrNew(ctx, userID)
	if err != nil {
		return nil, getOut, err
	}

	var fields []string
	fields = set(fields, "name", &profile.Name, req.Name)
	fields = set(fields, "email", &profile.Email, req.Email)
	fields = set(fields, "phone", &profile.Phone, req.Phone)
	fields = set(fields, "address", &profile.Address, req.Address)
	fields = set(fields, "photo_url", &profile.PhotoURL, req.PhotoURL)
	fields = set(fields, "location", &profile.Location, req.Location)
	fields = set(fields, "sleep_position", &profile.SleepPosition, req.SleepPosition)
	fields = set(fields, "sleep_time", &profile.SleepTime, req.SleepTime)
	fields = set(fields, "wake_time", &profile.WakeTime, req.WakeTime)
	fields = set(fields, "notifications", &profile.Notifications, req.Notifications)

	stored, out, err := s.patch(ctx, profile, fields...)
	if err != nil {
		return nil, out, err
	}

	s.logger.Info("profile updated", "user_id", userID, "fields", len(fields), "state", out.State)
	return stored, combine(out, getOut), nil
}

// UpdateRoutineTasks replaces the user's routine task list.
func (s *ProfileService) UpdateRoutineTasks(ctx context.Context, userID string, tasks []domain.RoutineTask) (*domain.UserProfile, sync.Outcome, error) {
	profile, getOut, err := s.getOrNew(ctx, userID)
	if err != nil {
		return nil, getOut, err
	}

	profile.RoutineTasks = tasks

	stored, out, err := s.patch(ctx, profile, "routine_tasks")
	if err != nil {
		return nil, out, err
	}

	s.logger.Info("routine tasks updated", "user_id", userID, "tasks", len(tasks), "state", out.State)
	return stored, combine(out, getOut), nil
}

// ApplyScores copies the scores of a new measurement onto the user's
// profile. A minimal profile is created when the user has none.
func (s *ProfileService) ApplyScores(ctx context.Context, userID string, scores scoring.Scores) (sync.Outcome, error) {
	profile, getOut, err := s.getOrNew(ctx, userID)
	if err != nil {
		return getOut, err
	}

	profile.SleepScore = scores.Sleep
	profile.ComfortScore = scores.Comfort
	profile.PostureScore = scores.Posture

	_, out, err := s.patch(ctx, profile, "sleep_score", "comfort_score", "posture_score")
	return combine(out, getOut), err
}

// patch writes fields of profile plus its update time.
func (s *ProfileService) patch(ctx context.Context, profile *domain.UserProfile, fields ...string) (*domain.UserProfile, sync.Outcome, error) {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	profile.Touch()
	return s.profiles.Patch(ctx, profile, append(fields, "updated_at")...)
}

// set applies v to dst when present and records the field as changed.
func set[T any](fields []string, name string, dst *T, v *T) []string {
	if v == nil {
		return fields
	}
	*dst = *v
	return append(fields, name)
}
