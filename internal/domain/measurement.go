package domain

import "time"

// SleepPosition is a sleeper's dominant position.
type SleepPosition string

// Sleep positions.
const (
	SleepBack    SleepPosition = "back"
	SleepSide    SleepPosition = "side"
	SleepStomach SleepPosition = "stomach"
)

// MeasurementSource records how a measurement was taken.
type MeasurementSource string

// Measurement sources.
const (
	SourceManual MeasurementSource = "manual"
	SourceScan   MeasurementSource = "scan"
)

// Measurement is one neck measurement with the scores derived from it.
// Measurements are immutable once written; newer ones supersede older ones.
type Measurement struct {
	CreatedAt     time.Time         `json:"created_at"`
	ID            string            `json:"id"`
	UserID        string            `json:"user_id" validate:"required"`
	SleepPosition SleepPosition     `json:"sleep_position" validate:"required,sleep_position"`
	Source        MeasurementSource `json:"source,omitempty" validate:"omitempty,oneof=manual scan"`
	NeckLength    float64           `json:"neck_length" validate:"gte=2,lte=10"`
	NeckWidth     float64           `json:"neck_width" validate:"gte=2,lte=20"`
	SleepScore    int               `json:"sleep_score" validate:"gte=0,lte=100"`
	ComfortScore  int               `json:"comfort_score" validate:"gte=0,lte=100"`
	PostureScore  int               `json:"posture_score" validate:"gte=0,lte=100"`
}

// Key returns the measurement's storage key.
func (m *Measurement) Key() string {
	return m.ID
}

