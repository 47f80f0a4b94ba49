package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/id"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/scoring"
	"github.com/sleepwell/sleepwell-server/internal/sse"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// MeasurementInput is a raw neck measurement in inches.
type MeasurementInput struct {
	NeckLength    float64                  `json:"neck_length" validate:"gte=2,lte=10"`
	NeckWidth     float64                  `json:"neck_width" validate:"gte=2,lte=20"`
	SleepPosition domain.SleepPosition     `json:"sleep_position" validate:"required,sleep_position"`
	Source        domain.MeasurementSource `json:"source,omitempty" validate:"omitempty,oneof=manual scan"`
}

func (in MeasurementInput) scoringInput() scoring.Input {
	return scoring.Input{
		NeckLength:    in.NeckLength,
		NeckWidth:     in.NeckWidth,
		SleepPosition: scoring.SleepPosition(in.SleepPosition),
	}
}

// MeasurementService records neck measurements and keeps the owner's
// profile scores in step with the latest one.
type MeasurementService struct {
	measurements *sync.Repository[domain.Measurement]
	profiles     *ProfileService
	validator    *validation.Validator
	events       EventEmitter
	logger       *slog.Logger
}

// NewMeasurementService creates a new measurement service.
func NewMeasurementService(coord *sync.Coordinator, validator *validation.Validator, profiles *ProfileService, events EventEmitter, logger *slog.Logger) *MeasurementService {
	return &MeasurementService{
		measurements: newMeasurementRepository(coord, validator),
		profiles:     profiles,
		validator:    validator,
		events:       emitterOrNoop(events),
		logger:       logger,
	}
}

func (s *MeasurementService) validate(in MeasurementInput) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(in)
}

// Score computes the full scores for in without storing anything.
func (s *MeasurementService) Score(in MeasurementInput) (scoring.Scores, error) {
	if err := s.validate(in); err != nil {
		return scoring.Scores{}, err
	}
	return scoring.Score(in.scoringInput()), nil
}

// PreviewScore computes the guest estimate for in.
func (s *MeasurementService) PreviewScore(in MeasurementInput) (int, error) {
	if err := s.validate(in); err != nil {
		return 0, err
	}
	return scoring.PreviewScore(in.scoringInput()), nil
}

// Record scores a measurement, stores it and copies the scores onto the
// user's profile. A profile that cannot be updated is logged; the
// measurement itself is still recorded.
func (s *MeasurementService) Record(ctx context.Context, userID string, in MeasurementInput) (*domain.Measurement, sync.Outcome, error) {
	if err := s.validate(in); err != nil {
		return nil, sync.Outcome{}, err
	}

	if in.Source == "" {
		in.Source = domain.SourceManual
	}
	scores := scoring.Score(in.scoringInput())

	m := &domain.Measurement{
		ID:            id.NewUUID(),
		UserID:        userID,
		NeckLength:    in.NeckLength,
		NeckWidth:     in.NeckWidth,
		SleepPosition: in.SleepPosition,
		Source:        in.Source,
		SleepScore:    scores.Sleep,
		ComfortScore:  scores.Comfort,
		PostureScore:  scores.Posture,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	out, err := s.measurements.Save(ctx, m)
	if err != nil {
		return nil, out, err
	}

	profileOut, err := s.profiles.ApplyScores(ctx, userID, scores)
	if err != nil {
		s.logger.Error("failed to update profile scores",
			"user_id", userID,
			"measurement_id", m.ID,
			"error", err)
	} else {
		out = combine(out, profileOut)
	}

	s.events.Emit(sse.NewMeasurementRecordedEvent(userID, m.ID, m.SleepScore, m.ComfortScore, m.PostureScore))
	s.logger.Info("measurement recorded",
		"user_id", userID,
		"measurement_id", m.ID,
		"sleep_score", m.SleepScore,
		"comfort_score", m.ComfortScore,
		"posture_score", m.PostureScore,
		"state", out.State)

	return m, out, nil
}

// History returns the user's measurements, newest first.
func (s *MeasurementService) History(ctx context.Context, userID string) ([]*domain.Measurement, sync.Outcome, error) {
	items, out, err := s.measurements.List(ctx, remote.Eq("user_id", userID).Order("created_at", true))
	if err != nil {
		return nil, out, err
	}
	// Timestamps compare as instants, not as their text form.
	slices.SortStableFunc(items, func(a, b *domain.Measurement) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return items, out, nil
}

// Latest returns the user's most recent measurement.
func (s *MeasurementService) Latest(ctx context.Context, userID string) (*domain.Measurement, sync.Outcome, error) {
	items, out, err := s.History(ctx, userID)
	if err != nil {
		return nil, out, err
	}
	if len(items) == 0 {
		return nil, out, domainerrors.NotFoundf("no measurements for user %s", userID)
	}
	return items[0], out, nil
}
