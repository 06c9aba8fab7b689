// Package assessment samples question papers from the fixed banks, scores
// submissions, and issues sequential learner credential numbers.
package assessment

import (
	"time"

	"github.com/google/uuid"

	"sarathi/pkg/domerrors"
)

// Type identifies an assessment.
type Type string

const (
	TypeColorVision Type = "colorVision"
	TypeLearnerTest Type = "learnerTest"
)

func (t Type) IsValid() bool {
	return t == TypeColorVision || t == TypeLearnerTest
}

func (t Type) String() string { return string(t) }

// ParseType validates a raw assessment type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", domerrors.Newf(domerrors.CodeValidation, "unknown assessment type %q", s)
	}
	return t, nil
}

// quota is how many questions each pool contributes to a paper.
type quota struct {
	image int
	text  int
}

var quotas = map[Type]quota{
	TypeLearnerTest: {image: 20, text: 10},
	TypeColorVision: {image: 8},
}

// timeLimits bound how long a paper stays answerable after issue. The
// client shows a countdown, but the server deadline is authoritative.
var timeLimits = map[Type]time.Duration{
	TypeLearnerTest: 20 * time.Minute,
	TypeColorVision: 10 * time.Minute,
}

// submitGrace absorbs clock skew and upload latency past the time limit.
const submitGrace = 30 * time.Second

// PaperQuestion is a bank question with the correct option stripped, as
// presented to the taker.
type PaperQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	HasImage bool     `json:"hasImage"`
	Image    string   `json:"image,omitempty"`
	Category string   `json:"category"`
}

// Paper is an issued question set awaiting submission.
type Paper struct {
	ID        uuid.UUID       `json:"paper_id"`
	Type      Type            `json:"type"`
	Questions []PaperQuestion `json:"questions"`
	IssuedAt  time.Time       `json:"issued_at"`
	TimeLimit time.Duration   `json:"-"`
}

// NotAnswered is the sentinel a taker submits for a skipped question. Skipped
// questions count toward the total but not toward the attempted count.
const NotAnswered = -1

// Answer pairs a question with the selected option index.
type Answer struct {
	QuestionID int `json:"question_id"`
	Selected   int `json:"selected"`
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score         int  `json:"score"`
	Total         int  `json:"total"`
	Attempted     int  `json:"attempted"`
	PassMark      int  `json:"pass_mark"`
	Passed        bool `json:"passed"`
	AttemptNumber int  `json:"attempt_number"`
}

// Attempt is the immutable record of one submission.
type Attempt struct {
	IdentityToken string        `json:"identity_token"`
	Type          Type          `json:"type"`
	Number        int           `json:"number"`
	Score         int           `json:"score"`
	Total         int           `json:"total"`
	Passed        bool          `json:"passed"`
	Violations    int           `json:"violations"`
	TimeTaken     time.Duration `json:"time_taken_ns"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Credential is an issued learner credential.
type Credential struct {
	Number     string    `json:"number"`
	IssueDate  time.Time `json:"issue_date"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// CredentialValidity is how long a learner credential stays usable.
const CredentialValidity = 6 // months

// LearnerCredentialType keys the per-year ordinal sequence.
const LearnerCredentialType = "LL"
