// Package roadtest holds the practical-test verification and evaluation
// domain: the one-time code bound to a scheduled test and the ten-criterion
// rating sheet a supervisor fills in.
package roadtest

import (
	"time"

	"sarathi/pkg/domerrors"
)

// Criterion is one rated aspect of the practical test.
type Criterion struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Criteria is the fixed rating sheet. Every criterion must be rated 1-5
// before an evaluation is accepted.
var Criteria = []Criterion{
	{1, "Vehicle Control and Handling", "Ability to control vehicle smoothly"},
	{2, "Traffic Rules Compliance", "Following traffic signals and road signs"},
	{3, "Lane Discipline", "Maintaining proper lane position"},
	{4, "Speed Management", "Appropriate speed for road conditions"},
	{5, "Awareness and Observation", "Checking mirrors and blind spots"},
	{6, "Use of Indicators", "Proper signaling before maneuvers"},
	{7, "Parking Skills", "Parallel and reverse parking ability"},
	{8, "Emergency Response", "Handling unexpected situations"},
	{9, "Smooth Braking", "Progressive and controlled braking"},
	{10, "Overall Driving Confidence", "General confidence and composure"},
}

const (
	MinRating = 1
	MaxRating = 5

	// PassPercent is the minimum aggregate percentage for a pass.
	PassPercent = 60.0
)

// Rating pairs a criterion with its 1-5 score.
type Rating struct {
	CriterionID int `json:"criterion_id"`
	Rating      int `json:"rating"`
}

// EvaluationResult is the computed outcome of a complete rating sheet.
type EvaluationResult struct {
	Aggregate int     `json:"aggregate"`
	MaxScore  int     `json:"max_score"`
	Percent   float64 `json:"percent"`
	Passed    bool    `json:"passed"`
}

// ScoreEvaluation validates the rating sheet and computes the outcome. All
// ten criteria must be present exactly once, each rated 1-5.
func ScoreEvaluation(ratings []Rating) (*EvaluationResult, error) {
	if len(ratings) != len(Criteria) {
		return nil, domerrors.Newf(domerrors.CodeValidation,
			"evaluation requires all %d criteria, got %d", len(Criteria), len(ratings))
	}

	known := make(map[int]bool, len(Criteria))
	for _, c := range Criteria {
		known[c.ID] = true
	}

	aggregate := 0
	seen := make(map[int]bool, len(ratings))
	for _, r := range ratings {
		if !known[r.CriterionID] {
			return nil, domerrors.Newf(domerrors.CodeValidation, "unknown criterion %d", r.CriterionID)
		}
		if seen[r.CriterionID] {
			return nil, domerrors.Newf(domerrors.CodeValidation, "criterion %d rated twice", r.CriterionID)
		}
		seen[r.CriterionID] = true
		if r.Rating < MinRating || r.Rating > MaxRating {
			return nil, domerrors.Newf(domerrors.CodeValidation,
				"criterion %d must be rated between %d and %d", r.CriterionID, MinRating, MaxRating)
		}
		aggregate += r.Rating
	}

	maxScore := len(Criteria) * MaxRating
	percent := float64(aggregate) / float64(maxScore) * 100
	return &EvaluationResult{
		Aggregate: aggregate,
		MaxScore:  maxScore,
		Percent:   percent,
		Passed:    percent >= PassPercent,
	}, nil
}

// Session is an unconsumed one-time code bound to an application.
type Session struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the code has lapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
