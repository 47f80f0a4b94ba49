package domain

import (
	"encoding/json"
	"time"
)

// RoutineTask is one step of a user's bedtime routine.
type RoutineTask struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Time      string `json:"time,omitempty"`
	Completed bool   `json:"completed"`
}

// UserProfile is keyed by the user's id. The score fields mirror the user's
// latest measurement and are rewritten whenever a new one is recorded.
type UserProfile struct {
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name,omitempty" validate:"max=200"`
	Email         string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string        `json:"phone,omitempty"`
	Address       string        `json:"address,omitempty"`
	PhotoURL      string        `json:"photo_url,omitempty" validate:"omitempty,url"`
	Location      string        `json:"location,omitempty"`
	SleepPosition SleepPosition `json:"sleep_position,omitempty" validate:"omitempty,sleep_position"`
	SleepTime     string        `json:"sleep_time,omitempty"`
	WakeTime      string        `json:"wake_time,omitempty"`
	RoutineTasks  []RoutineTask `json:"routine_tasks,omitempty" validate:"omitempty,dive"`
	SleepScore    int           `json:"sleep_score" validate:"gte=0,lte=100"`
	ComfortScore  int           `json:"comfort_score" validate:"gte=0,lte=100"`
	PostureScore  int           `json:"posture_score" validate:"gte=0,lte=100"`
	Notifications bool          `json:"notifications"`
}

// Key returns the profile's storage key.
func (p *UserProfile) Key() string {
	return p.ID
}

// Touch updates the UpdatedAt timestamp.
func (p *UserProfile) Touch() {
	p.UpdatedAt = time.Now()
}

// ChatHistory is a user's whole conversation, stored as one opaque blob.
type ChatHistory struct {
	UpdatedAt time.Time       `json:"updated_at"`
	UserID    string          `json:"user_id" validate:"required"`
	Messages  json.RawMessage `json:"messages"`
}

// Key returns the history's storage key.
func (c *ChatHistory) Key() string {
	return c.UserID
}

// NewUserProfile returns an empty profile for userID.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now()
	return &UserProfile{
		ID:            userID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Notifications: true,
	}
}
