package services

import (
	"github.com/developia-II/slang-translator-backend/internal/models"
)

// Thresholds are the policy inputs of the decision table.
type Thresholds struct {
	AutoApproveConfidence float64
	AutoApproveMinUsage   int
	RejectBelow           float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{AutoApproveConfidence: 0.85, AutoApproveMinUsage: 7, RejectBelow: 0.3}
}

// Scores is what the model said about a submission.
type Scores struct {
	Confidence     float64
	Usage          int
	MeaningMatches bool
}

type decisionRule struct {
	name    string
	matches func(t Thresholds, s Scores) bool
	outcome models.SubmissionStatus
}

// decisionTable is evaluated top to bottom; the first matching row wins.
var decisionTable = []decisionRule{
	{
		name:    "contradiction",
		matches: func(_ Thresholds, s Scores) bool { return !s.MeaningMatches },
		outcome: models.StatusRejected,
	},
	{
		name:    "floor",
		matches: func(t Thresholds, s Scores) bool { return s.Confidence < t.RejectBelow },
		outcome: models.StatusRejected,
	},
	{
		name: "auto",
		matches: func(t Thresholds, s Scores) bool {
			return s.Confidence >= t.AutoApproveConfidence && s.Usage >= t.AutoApproveMinUsage
		},
		outcome: models.StatusAutoApproved,
	},
	{
		name:    "middle",
		matches: func(Thresholds, Scores) bool { return true },
		outcome: models.StatusPendingVote,
	},
}

// Decide returns the outcome and the name of the rule that produced it.
func Decide(t Thresholds, s Scores) (models.SubmissionStatus, string) {
	for _, row := range decisionTable {
		if row.matches(t, s) {
			return row.outcome, row.name
		}
	}
	return models.StatusPendingVote, "middle"
}

// ValidationOutcome is the disposition of one Validate call. Record is the stored state
// after the final write.
type ValidationOutcome struct {
	Status    models.SubmissionStatus
	Rule      string
	LLMStatus models.LLMValidationStatus
	Evidence  *models.ValidationEvidence
	Record    *models.SubmissionRecord
}
