package models

import (
	"fmt"
	"time"
)

// SubmissionStatus is the lifecycle state of a crowd-sourced term.
// The set is closed: ParseSubmissionStatus rejects anything else.
type SubmissionStatus string

const (
	StatusSubmitted         SubmissionStatus = "SUBMITTED"
	StatusValidating        SubmissionStatus = "VALIDATING"
	StatusAutoApproved      SubmissionStatus = "AUTO_APPROVED"
	StatusPendingVote       SubmissionStatus = "PENDING_VOTE"
	StatusRejected          SubmissionStatus = "REJECTED"
	StatusCommunityApproved SubmissionStatus = "COMMUNITY_APPROVED"
	StatusAdminApproved     SubmissionStatus = "ADMIN_APPROVED"
	StatusAdminRejected     SubmissionStatus = "ADMIN_REJECTED"
)

// statusTransitions lists, for every non-terminal status, where it may move next.
// Statuses with no row are terminal.
var statusTransitions = map[SubmissionStatus][]SubmissionStatus{
	StatusSubmitted:   {StatusValidating, StatusAdminRejected},
	StatusValidating:  {StatusAutoApproved, StatusPendingVote, StatusRejected, StatusAdminRejected},
	StatusPendingVote: {StatusCommunityApproved, StatusAdminApproved, StatusAdminRejected},
}

var allStatuses = []SubmissionStatus{
	StatusSubmitted, StatusValidating, StatusAutoApproved, StatusPendingVote,
	StatusRejected, StatusCommunityApproved, StatusAdminApproved, StatusAdminRejected,
}

func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown submission status %q", ErrInvalidInput, s)
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []SubmissionStatus {
	return append([]SubmissionStatus(nil), allStatuses...)
}

// OpenStatuses returns the statuses that still block a resubmission of the same term.
func OpenStatuses() []SubmissionStatus {
	return []SubmissionStatus{StatusSubmitted, StatusValidating, StatusPendingVote}
}

func (s SubmissionStatus) IsTerminal() bool {
	_, open := statusTransitions[s]
	return !open
}

func (s SubmissionStatus) IsApproved() bool {
	return s == StatusAutoApproved || s == StatusCommunityApproved || s == StatusAdminApproved
}

func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type SubmissionContext string

const (
	ContextManual            SubmissionContext = "manual"
	ContextFailedTranslation SubmissionContext = "failed_translation"
)

type ApprovalType string

const (
	ApprovalAuto      ApprovalType = "auto"
	ApprovalCommunity ApprovalType = "community"
	ApprovalAdmin     ApprovalType = "admin"
)

// LLMValidationStatus records what happened to the automated check.
type LLMValidationStatus string

const (
	LLMValidationPending     LLMValidationStatus = "pending"
	LLMValidationCompleted   LLMValidationStatus = "completed"
	LLMValidationUnavailable LLMValidationStatus = "unavailable"
	LLMValidationTimedOut    LLMValidationStatus = "timed_out"
)

type SubmissionRecord struct {
	ID                  string              `json:"submissionId" bson:"_id"`
	UserID              string              `json:"userId" bson:"userId"`
	SlangTerm           string              `json:"slangTerm" bson:"slangTerm"`
	NormalizedTerm      string              `json:"normalizedTerm" bson:"normalizedTerm"`
	ProposedMeaning     string              `json:"proposedMeaning" bson:"proposedMeaning"`
	ExampleUsage        string              `json:"exampleUsage,omitempty" bson:"exampleUsage,omitempty"`
	Context             SubmissionContext   `json:"context" bson:"context"`
	Status              SubmissionStatus    `json:"status" bson:"status"`
	LLMValidationStatus LLMValidationStatus `json:"llmValidationStatus" bson:"llmValidationStatus"`
	LLMConfidenceScore  *float64            `json:"llmConfidenceScore,omitempty" bson:"llmConfidenceScore,omitempty"`
	LLMUsageScore       *int                `json:"llmUsageScore,omitempty" bson:"llmUsageScore,omitempty"`
	ApprovalType        ApprovalType        `json:"approvalType,omitempty" bson:"approvalType,omitempty"`
	Upvotes             int                 `json:"upvotes" bson:"upvotes"`
	Voters              []string            `json:"-" bson:"voters,omitempty"`
	Evidence            *ValidationEvidence `json:"evidence,omitempty" bson:"evidence,omitempty"`
	CreatedAt           time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt" bson:"updatedAt"`
	ReviewedAt          *time.Time          `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	ReviewedBy          string              `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`

	// OpenTerm mirrors NormalizedTerm while the record is non-terminal. A unique sparse
	// index on it keeps two open submissions of one term from coexisting.
	OpenTerm string `json:"-" bson:"openTerm,omitempty"`
}

func (r SubmissionRecord) Clone() SubmissionRecord {
	r.Voters = append([]string(nil), r.Voters...)
	if r.LLMConfidenceScore != nil {
		v := *r.LLMConfidenceScore
		r.LLMConfidenceScore = &v
	}
	if r.LLMUsageScore != nil {
		v := *r.LLMUsageScore
		r.LLMUsageScore = &v
	}
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		r.ReviewedAt = &v
	}
	if r.Evidence != nil {
		ev := *r.Evidence
		ev.SearchSnippets = append([]string(nil), ev.SearchSnippets...)
		r.Evidence = &ev
	}
	return r
}

// StatusUpdate is one compare-and-set step of the state machine: it applies only while
// the stored status still equals From. Zero-valued optional fields are left untouched.
type StatusUpdate struct {
	From                SubmissionStatus
	To                  SubmissionStatus
	At                  time.Time
	LLMValidationStatus LLMValidationStatus
	LLMConfidenceScore  *float64
	LLMUsageScore       *int
	Evidence            *ValidationEvidence
	ApprovalType        ApprovalType
	ReviewedBy          string
	ReviewedAt          *time.Time
}

// Apply writes the update onto r. Stores use it after their own status check.
func (u StatusUpdate) Apply(r *SubmissionRecord) {
	r.Status = u.To
	r.UpdatedAt = u.At
	if u.LLMValidationStatus != "" {
		r.LLMValidationStatus = u.LLMValidationStatus
	}
	if u.LLMConfidenceScore != nil {
		r.LLMConfidenceScore = u.LLMConfidenceScore
	}
	if u.LLMUsageScore != nil {
		r.LLMUsageScore = u.LLMUsageScore
	}
	if u.Evidence != nil {
		r.Evidence = u.Evidence
	}
	if u.ApprovalType != "" {
		r.ApprovalType = u.ApprovalType
	}
	if u.ReviewedBy != "" {
		r.ReviewedBy = u.ReviewedBy
	}
	if u.ReviewedAt != nil {
		r.ReviewedAt = u.ReviewedAt
	}
	if u.To.IsTerminal() {
		r.OpenTerm = ""
	}
}

type SubmitRequest struct {
	Term    string            `json:"term" validate:"required,max=64"`
	Meaning string            `json:"meaning" validate:"required,max=500"`
	Example string            `json:"example,omitempty" validate:"max=500"`
	Context SubmissionContext `json:"context,omitempty" validate:"omitempty,oneof=manual failed_translation"`
}

type SubmissionPage struct {
	Submissions []SubmissionRecord `json:"submissions"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	Total       int64              `json:"total"`
	TotalPages  int64              `json:"totalPages"`
}
