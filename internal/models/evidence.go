package models

import "time"

// ValidationEvidence is what the pipeline gathered for one submission. It is stored on
// the SubmissionRecord in the same write as the status change.
type ValidationEvidence struct {
	SubmissionID   string    `json:"submissionId" bson:"submissionId"`
	SearchSnippets []string  `json:"searchSnippets" bson:"searchSnippets"`
	LLMRationale   string    `json:"llmRationale" bson:"llmRationale"`
	LLMUsageScore  int       `json:"llmUsageScore" bson:"llmUsageScore"`
	LLMConfidence  float64   `json:"llmConfidence" bson:"llmConfidence"`
	MeaningMatches bool      `json:"meaningMatches" bson:"meaningMatches"`
	CollectedAt    time.Time `json:"collectedAt" bson:"collectedAt"`
}
