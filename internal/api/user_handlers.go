package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/service"
)

func (s *Server) registerMeasurementRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "recordMeasurement",
		Method:        http.MethodPost,
		Path:          "/api/v1/users/{userID}/measurements",
		Summary:       "Record measurement",
		Description:   "Scores a neck measurement, stores it and copies the scores onto the user's profile",
		Tags:          []string{"Measurements"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRecordMeasurement)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMeasurements",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/measurements",
		Summary:     "List measurements",
		Description: "Returns the user's measurements, newest first",
		Tags:        []string{"Measurements"},
	}, s.handleListMeasurements)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLatestMeasurement",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/measurements/latest",
		Summary:     "Get latest measurement",
		Description: "Returns the user's most recent measurement",
		Tags:        []string{"Measurements"},
	}, s.handleLatestMeasurement)
}

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/profile",
		Summary:     "Get profile",
		Description: "Returns the user's profile",
		Tags:        []string{"Profiles"},
	}, s.handleGetProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProfile",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{userID}/profile",
		Summary:     "Update profile",
		Description: "Updates the given profile fields, creating the profile if needed",
		Tags:        []string{"Profiles"},
	}, s.handleUpdateProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateRoutineTasks",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{userID}/profile/routine-tasks",
		Summary:     "Replace routine tasks",
		Description: "Replaces the user's bedtime routine",
		Tags:        []string{"Profiles"},
	}, s.handleUpdateRoutineTasks)
}

func (s *Server) registerChatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getChatHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/chat-history",
		Summary:     "Get chat history",
		Description: "Returns the user's stored assistant conversation",
		Tags:        []string{"Chat"},
	}, s.handleGetChatHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveChatHistory",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{userID}/chat-history",
		Summary:     "Save chat history",
		Description: "Replaces the user's stored conversation",
		Tags:        []string{"Chat"},
	}, s.handleSaveChatHistory)
}

// === DTOs ===

// UserIDInput identifies a user.
type UserIDInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

// MeasurementRequest is a raw neck measurement in inches.
type MeasurementRequest struct {
	NeckLength    float64 `json:"neck_length" minimum:"2" maximum:"10" doc:"Neck length in inches"`
	NeckWidth     float64 `json:"neck_width" minimum:"2" maximum:"20" doc:"Neck width in inches"`
	SleepPosition string  `json:"sleep_position" enum:"back,side,stomach" doc:"Dominant sleep position"`
	Source        string  `json:"source,omitempty" enum:"manual,scan" doc:"How the measurement was taken"`
}

func (r MeasurementRequest) toInput() service.MeasurementInput {
	return service.MeasurementInput{
		NeckLength:    r.NeckLength,
		NeckWidth:     r.NeckWidth,
		SleepPosition: domain.SleepPosition(r.SleepPosition),
		Source:        domain.MeasurementSource(r.Source),
	}
}

// RecordMeasurementInput wraps the record measurement request for Huma.
type RecordMeasurementInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   MeasurementRequest
}

// MeasurementResponse contains measurement data in API responses.
type MeasurementResponse struct {
	ID            string    `json:"id" doc:"Measurement ID"`
	UserID        string    `json:"user_id" doc:"Owner"`
	NeckLength    float64   `json:"neck_length" doc:"Neck length in inches"`
	NeckWidth     float64   `json:"neck_width" doc:"Neck width in inches"`
	SleepPosition string    `json:"sleep_position" doc:"Sleep position"`
	Source        string    `json:"source,omitempty" doc:"manual or scan"`
	SleepScore    int       `json:"sleep_score" doc:"Sleep score 0-100"`
	ComfortScore  int       `json:"comfort_score" doc:"Comfort score 0-100"`
	PostureScore  int       `json:"posture_score" doc:"Posture score 0-100"`
	CreatedAt     time.Time `json:"created_at" doc:"When the measurement was taken"`
}

// MeasurementOutput wraps a measurement response for Huma.
type MeasurementOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        MeasurementResponse
}

// ListMeasurementsResponse contains a user's measurements.
type ListMeasurementsResponse struct {
	Measurements []MeasurementResponse `json:"measurements" doc:"Measurements, newest first"`
}

// ListMeasurementsOutput wraps a measurement list for Huma.
type ListMeasurementsOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ListMeasurementsResponse
}

// RoutineTaskDTO is one step of a bedtime routine.
type RoutineTaskDTO struct {
	ID        string `json:"id" minLength:"1" doc:"Task ID"`
	Title     string `json:"title" minLength:"1" maxLength:"200" doc:"Task title"`
	Time      string `json:"time,omitempty" doc:"Time of day, HH:MM"`
	Completed bool   `json:"completed" doc:"Whether the task is done"`
}

// ProfileResponse contains profile data in API responses.
type ProfileResponse struct {
	ID            string           `json:"id" doc:"User ID"`
	Name          string           `json:"name,omitempty" doc:"Display name"`
	Email         string           `json:"email,omitempty" doc:"Email address"`
	Phone         string           `json:"phone,omitempty" doc:"Phone number"`
	Address       string           `json:"address,omitempty" doc:"Postal address"`
	PhotoURL      string           `json:"photo_url,omitempty" doc:"Avatar URL"`
	Location      string           `json:"location,omitempty" doc:"Location"`
	SleepPosition string           `json:"sleep_position,omitempty" doc:"Dominant sleep position"`
	SleepTime     string           `json:"sleep_time,omitempty" doc:"Usual bedtime"`
	WakeTime      string           `json:"wake_time,omitempty" doc:"Usual wake time"`
	RoutineTasks  []RoutineTaskDTO `json:"routine_tasks" doc:"Bedtime routine"`
	SleepScore    int              `json:"sleep_score" doc:"Latest sleep score"`
	ComfortScore  int              `json:"comfort_score" doc:"Latest comfort score"`
	PostureScore  int              `json:"posture_score" doc:"Latest posture score"`
	Notifications bool             `json:"notifications" doc:"Whether notifications are enabled"`
	CreatedAt     time.Time        `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time        `json:"updated_at" doc:"Last update time"`
}

// ProfileOutput wraps a profile response for Huma.
type ProfileOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ProfileResponse
}

// UpdateProfileRequest contains optional fields to update.
type UpdateProfileRequest struct {
	Name          *string `json:"name,omitempty" maxLength:"200" doc:"Display name"`
	Email         *string `json:"email,omitempty" doc:"Email address"`
	Phone         *string `json:"phone,omitempty" doc:"Phone number"`
	Address       *string `json:"address,omitempty" doc:"Postal address"`
	PhotoURL      *string `json:"photo_url,omitempty" doc:"Avatar URL"`
	Location      *string `json:"location,omitempty" doc:"Location"`
	SleepPosition *string `json:"sleep_position,omitempty" enum:"back,side,stomach" doc:"Dominant sleep position"`
	SleepTime     *string `json:"sleep_time,omitempty" doc:"Usual bedtime"`
	WakeTime      *string `json:"wake_time,omitempty" doc:"Usual wake time"`
	Notifications *bool   `json:"notifications,omitempty" doc:"Enable notifications"`
}

// UpdateProfileInput wraps the update profile request for Huma.
type UpdateProfileInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   UpdateProfileRequest
}

// UpdateRoutineTasksInput wraps the routine replacement for Huma.
type UpdateRoutineTasksInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   struct {
		Tasks []RoutineTaskDTO `json:"tasks" maxItems:"50" doc:"The full routine"`
	}
}

// ChatHistoryResponse contains a stored conversation.
type ChatHistoryResponse struct {
	UserID    string          `json:"user_id" doc:"User ID"`
	Messages  json.RawMessage `json:"messages" doc:"Conversation messages as stored by the client"`
	UpdatedAt time.Time       `json:"updated_at,omitempty" doc:"Last save time"`
}

// ChatHistoryOutput wraps a chat history response for Huma.
type ChatHistoryOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ChatHistoryResponse
}

// SaveChatHistoryInput wraps the chat history replacement for Huma.
type SaveChatHistoryInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   struct {
		Messages json.RawMessage `json:"messages" doc:"Conversation messages, a JSON array"`
	}
}

// === Handlers ===

func (s *Server) handleRecordMeasurement(ctx context.Context, input *RecordMeasurementInput) (*MeasurementOutput, error) {
	m, out, err := s.services.Measurement.Record(ctx, input.UserID, input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &MeasurementOutput{SyncOutcome: outcomeHeader(out), Body: toMeasurementResponse(m)}, nil
}

func (s *Server) handleListMeasurements(ctx context.Context, input *UserIDInput) (*ListMeasurementsOutput, error) {
	ms, out, err := s.services.Measurement.History(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	resp := ListMeasurementsResponse{Measurements: make([]MeasurementResponse, 0, len(ms))}
	for _, m := range ms {
		resp.Measurements = append(resp.Measurements, toMeasurementResponse(m))
	}
	return &ListMeasurementsOutput{SyncOutcome: outcomeHeader(out), Body: resp}, nil
}

func (s *Server) handleLatestMeasurement(ctx context.Context, input *UserIDInput) (*MeasurementOutput, error) {
	m, out, err := s.services.Measurement.Latest(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &MeasurementOutput{SyncOutcome: outcomeHeader(out), Body: toMeasurementResponse(m)}, nil
}

func (s *Server) handleGetProfile(ctx context.Context, input *UserIDInput) (*ProfileOutput, error) {
	p, out, err := s.services.Profile.GetProfile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{SyncOutcome: outcomeHeader(out), Body: toProfileResponse(p)}, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, input *UpdateProfileInput) (*ProfileOutput, error) {
	b := input.Body
	req := service.UpdateProfileRequest{
		Name:          b.Name,
		Email:         b.Email,
		Phone:         b.Phone,
		Address:       b.Address,
		PhotoURL:      b.PhotoURL,
		Location:      b.Location,
		SleepTime:     b.SleepTime,
		WakeTime:      b.WakeTime,
		Notifications: b.Notifications,
	}
	if b.SleepPosition != nil {
		pos := domain.SleepPosition(*b.SleepPosition)
		req.SleepPosition = &pos
	}

	p, out, err := s.services.Profile.UpdateProfile(ctx, input.UserID, req)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{SyncOutcome: outcomeHeader(out), Body: toProfileResponse(p)}, nil
}

func (s *Server) handleUpdateRoutineTasks(ctx context.Context, input *UpdateRoutineTasksInput) (*ProfileOutput, error) {
	tasks := make([]domain.RoutineTask, 0, len(input.Body.Tasks))
	for _, t := range input.Body.Tasks {
		tasks = append(tasks, domain.RoutineTask{
			ID:        t.ID,
			Title:     t.Title,
			Time:      t.Time,
			Completed: t.Completed,
		})
	}

	p, out, err := s.services.Profile.UpdateRoutineTasks(ctx, input.UserID, tasks)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{SyncOutcome: outcomeHeader(out), Body: toProfileResponse(p)}, nil
}

func (s *Server) handleGetChatHistory(ctx context.Context, input *UserIDInput) (*ChatHistoryOutput, error) {
	h, out, err := s.services.Chat.GetHistory(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &ChatHistoryOutput{SyncOutcome: outcomeHeader(out), Body: toChatHistoryResponse(h)}, nil
}

func (s *Server) handleSaveChatHistory(ctx context.Context, input *SaveChatHistoryInput) (*ChatHistoryOutput, error) {
	h, out, err := s.services.Chat.SaveHistory(ctx, input.UserID, input.Body.Messages)
	if err != nil {
		return nil, err
	}
	return &ChatHistoryOutput{SyncOutcome: outcomeHeader(out), Body: toChatHistoryResponse(h)}, nil
}

func toMeasurementResponse(m *domain.Measurement) MeasurementResponse {
	return MeasurementResponse{
		ID:            m.ID,
		UserID:        m.UserID,
		NeckLength:    m.NeckLength,
		NeckWidth:     m.NeckWidth,
		SleepPosition: string(m.SleepPosition),
		Source:        string(m.Source),
		SleepScore:    m.SleepScore,
		ComfortScore:  m.ComfortScore,
		PostureScore:  m.PostureScore,
		CreatedAt:     m.CreatedAt,
	}
}

func toProfileResponse(p *domain.UserProfile) ProfileResponse {
	tasks := make([]RoutineTaskDTO, 0, len(p.RoutineTasks))
	for _, t := range p.RoutineTasks {
		tasks = append(tasks, RoutineTaskDTO{
			ID:        t.ID,
			Title:     t.Title,
			Time:      t.Time,
			Completed: t.Completed,
		})
	}
	return ProfileResponse{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		PhotoURL:      p.PhotoURL,
		Location:      p.Location,
		SleepPosition: string(p.SleepPosition),
		SleepTime:     p.SleepTime,
		WakeTime:      p.WakeTime,
		RoutineTasks:  tasks,
		SleepScore:    p.SleepScore,
		ComfortScore:  p.ComfortScore,
		PostureScore:  p.PostureScore,
		Notifications: p.Notifications,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toChatHistoryResponse(h *domain.ChatHistory) ChatHistoryResponse {
	messages := h.Messages
	if len(messages) == 0 {
		messages = json.RawMessage("[]")
	}
	return ChatHistoryResponse{
		UserID:    h.UserID,
		Messages:  messages,
		UpdatedAt: h.UpdatedAt,
	}
}
