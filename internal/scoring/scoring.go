// Package scoring derives pillow fitness scores from raw neck measurements.
//
// Two formulas exist. Score is the persisted three-score formula used for
// signed-in users; PreviewScore is the single-number estimate shown to guests
// before they sign in. They disagree on purpose and must not be merged.
package scoring

// SleepPosition is the sleeper's dominant position.
type SleepPosition string

// Sleep positions.
const (
	PositionBack    SleepPosition = "back"
	PositionSide    SleepPosition = "side"
	PositionStomach SleepPosition = "stomach"
)

// Input is a single neck measurement in inches.
type Input struct {
	NeckLength    float64
	NeckWidth     float64
	SleepPosition SleepPosition
}

// Scores are the three derived fitness scores, each in [0,100].
type Scores struct {
	Sleep   int `json:"sleep_score"`
	Comfort int `json:"comfort_score"`
	Posture int `json:"posture_score"`
}

const (
	baseSleep   = 70
	baseComfort = 65
	basePosture = 75
	basePreview = 70
)

// Score computes the sleep, comfort and posture scores for a measurement.
func Score(in Input) Scores {
	sleep := baseSleep
	comfort := baseComfort
	posture := basePosture

	// Sleep score.
	switch {
	case in.NeckLength >= 4 && in.NeckLength <= 6:
		sleep += 10
	case in.NeckLength < 4:
		sleep -= 5
	default:
		sleep -= 8
	}

	switch {
	case in.NeckWidth >= 6 && in.NeckWidth <= 8:
		sleep += 10
	case in.NeckWidth < 6:
		sleep -= 5
	default:
		sleep -= 8
	}

	switch in.SleepPosition {
	case PositionBack:
		sleep += 8
	case PositionSide:
		sleep += 5
	default:
		sleep -= 3
	}

	// Comfort score.
	switch {
	case in.NeckWidth >= 5.5 && in.NeckWidth <= 8.5:
		comfort += 15
	case in.NeckWidth < 5.5:
		comfort -= 10
	default:
		comfort -= 5
	}

	switch in.SleepPosition {
	case PositionSide:
		comfort += 10
	case PositionBack:
		comfort += 5
	}

	// Posture score.
	if in.NeckLength >= 4 && in.NeckLength <= 6.5 {
		posture += 12
	} else {
		posture -= 8
	}

	switch in.SleepPosition {
	case PositionBack:
		posture += 10
	case PositionSide:
		posture += 5
	default:
		posture -= 10
	}

	return Scores{
		Sleep:   clamp(sleep),
		Comfort: clamp(comfort),
		Posture: clamp(posture),
	}
}

// PreviewScore computes the guest estimate shown before sign-in.
func PreviewScore(in Input) int {
	score := basePreview

	if in.NeckLength >= 4 && in.NeckLength <= 6 {
		score += 10
	} else {
		score -= 5
	}

	if in.NeckWidth >= 6 && in.NeckWidth <= 8 {
		score += 10
	} else {
		score -= 5
	}

	switch in.SleepPosition {
	case PositionBack:
		score += 5
	case PositionSide:
		score += 3
	}

	return clamp(score)
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
