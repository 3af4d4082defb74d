package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to SubmissionStatus
		allowed  bool
	}{
		{StatusSubmitted, StatusValidating, true},
		{StatusSubmitted, StatusAdminRejected, true},
		{StatusSubmitted, StatusAutoApproved, false},
		{StatusValidating, StatusAutoApproved, true},
		{StatusValidating, StatusPendingVote, true},
		{StatusValidating, StatusRejected, true},
		{StatusValidating, StatusCommunityApproved, false},
		{StatusPendingVote, StatusCommunityApproved, true},
		{StatusPendingVote, StatusAdminApproved, true},
		{StatusPendingVote, StatusAdminRejected, true},
		{StatusPendingVote, StatusValidating, false},
		{StatusAutoApproved, StatusPendingVote, false},
		{StatusRejected, StatusPendingVote, false},
		{StatusAdminRejected, StatusAdminApproved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubmissionStatus_Terminal(t *testing.T) {
	for _, s := range []SubmissionStatus{StatusSubmitted, StatusValidating, StatusPendingVote} {
		assert.False(t, s.IsTerminal(), s)
	}
	for _, s := range []SubmissionStatus{StatusAutoApproved, StatusRejected, StatusCommunityApproved, StatusAdminApproved, StatusAdminRejected} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.True(t, StatusCommunityApproved.IsApproved())
	assert.False(t, StatusAdminRejected.IsApproved())
	assert.ElementsMatch(t, OpenStatuses(), []SubmissionStatus{StatusSubmitted, StatusValidating, StatusPendingVote})
}

func TestParseSubmissionStatus(t *testing.T) {
	s, err := ParseSubmissionStatus("PENDING_VOTE")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingVote, s)

	_, err = ParseSubmissionStatus("pending")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestStatusUpdate_Apply(t *testing.T) {
	now := time.Now()
	conf := 0.9
	rec := SubmissionRecord{Status: StatusValidating, OpenTerm: "rizz", LLMValidationStatus: LLMValidationPending}

	StatusUpdate{
		From:                StatusValidating,
		To:                  StatusAutoApproved,
		At:                  now,
		LLMValidationStatus: LLMValidationCompleted,
		LLMConfidenceScore:  &conf,
		ApprovalType:        ApprovalAuto,
	}.Apply(&rec)

	assert.Equal(t, StatusAutoApproved, rec.Status)
	assert.Equal(t, LLMValidationCompleted, rec.LLMValidationStatus)
	assert.Equal(t, ApprovalAuto, rec.ApprovalType)
	assert.Equal(t, 0.9, *rec.LLMConfidenceScore)
	assert.Empty(t, rec.OpenTerm, "terminal records release the open-term slot")
}

func TestSubmissionRecord_CloneIsDeep(t *testing.T) {
	conf := 0.5
	rec := SubmissionRecord{Voters: []string{"a"}, LLMConfidenceScore: &conf, Evidence: &ValidationEvidence{SearchSnippets: []string{"x"}}}
	c := rec.Clone()
	c.Voters[0] = "b"
	*c.LLMConfidenceScore = 0.1
	c.Evidence.SearchSnippets[0] = "y"

	assert.Equal(t, "a", rec.Voters[0])
	assert.Equal(t, 0.5, *rec.LLMConfidenceScore)
	assert.Equal(t, "x", rec.Evidence.SearchSnippets[0])
}
