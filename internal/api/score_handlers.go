package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerScoreRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "computeScores",
		Method:      http.MethodPost,
		Path:        "/api/v1/scores",
		Summary:     "Compute scores",
		Description: "Computes sleep, comfort and posture scores for a measurement without storing it",
		Tags:        []string{"Scores"},
	}, s.handleComputeScores)

	huma.Register(s.api, huma.Operation{
		OperationID: "previewScore",
		Method:      http.MethodPost,
		Path:        "/api/v1/scores/preview",
		Summary:     "Preview score",
		Description: "Computes the single estimate shown to guests",
		Tags:        []string{"Scores"},
	}, s.handlePreviewScore)
}

// === DTOs ===

// ScoreInput wraps a measurement for scoring.
type ScoreInput struct {
	Body MeasurementRequest
}

// ScoresResponse contains the three derived scores.
type ScoresResponse struct {
	SleepScore   int `json:"sleep_score" doc:"Sleep score 0-100"`
	ComfortScore int `json:"comfort_score" doc:"Comfort score 0-100"`
	PostureScore int `json:"posture_score" doc:"Posture score 0-100"`
}

// ScoresOutput wraps the scores for Huma.
type ScoresOutput struct {
	Body ScoresResponse
}

// PreviewScoreOutput wraps the guest estimate for Huma.
type PreviewScoreOutput struct {
	Body struct {
		Score int `json:"score" doc:"Estimated score 0-100"`
	}
}

// === Handlers ===

func (s *Server) handleComputeScores(_ context.Context, input *ScoreInput) (*ScoresOutput, error) {
	scores, err := s.services.Measurement.Score(input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &ScoresOutput{Body: ScoresResponse{
		SleepScore:   scores.Sleep,
		ComfortScore: scores.Comfort,
		PostureScore: scores.Posture,
	}}, nil
}

func (s *Server) handlePreviewScore(_ context.Context, input *ScoreInput) (*PreviewScoreOutput, error) {
	score, err := s.services.Measurement.PreviewScore(input.Body.toInput())
	if err != nil {
		return nil, err
	}
	out := &PreviewScoreOutput{}
	out.Body.Score = score
	return out, nil
}
