package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"sarathi/internal/assessment/bank"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/sentinel"
)

// AttemptStore persists immutable submission records. Count never decreases.
type AttemptStore interface {
	Record(ctx context.Context, attempt Attempt) error
	Count(ctx context.Context, identityToken string, typ Type) (int, error)
	Latest(ctx context.Context, identityToken string, typ Type) (*Attempt, error)
}

// SequenceStore allocates per-(credential type, year) ordinals. Next must be
// race-safe: concurrent callers receive distinct, gap-free increasing values.
type SequenceStore interface {
	Next(ctx context.Context, credentialType string, year int) (int, error)
}

// Engine owns the banks, pending papers, attempt history, and the credential
// sequence.
type Engine struct {
	banks     map[Type]*bank.Bank
	attempts  AttemptStore
	sequences SequenceStore
	logger    *slog.Logger

	rng *lockedRand
	now func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingPaper
}

type pendingPaper struct {
	identityToken string
	typ           Type
	issuedAt      time.Time
	questionIDs   []int
}

type Option func(*Engine)

// WithClock overrides the engine clock, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed pins the shuffle source, for deterministic sampling tests.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = &lockedRand{r: rand.New(rand.NewPCG(seed, 0))}
	}
}

// NewEngine loads both banks and wires the stores.
func NewEngine(attempts AttemptStore, sequences SequenceStore, logger *slog.Logger, opts ...Option) (*Engine, error) {
	learner, err := bank.Learner()
	if err != nil {
		return nil, fmt.Errorf("load learner bank: %w", err)
	}
	plates, err := bank.ColorVision()
	if err != nil {
		return nil, fmt.Errorf("load plate bank: %w", err)
	}

	e := &Engine{
		banks: map[Type]*bank.Bank{
			TypeLearnerTest: learner,
			TypeColorVision: plates,
		},
		attempts:  attempts,
		sequences: sequences,
		logger:    logger,
		rng:       &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))},
		now:       time.Now,
		pending:   make(map[uuid.UUID]*pendingPaper),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// IssuePaper samples a fresh paper for the identity token. Each pool is
// shuffled independently (uniform permutation), the per-pool quota is drawn,
// and the combined draw is shuffled again so image and text questions
// interleave. Correct answers never leave the engine. A re-issue replaces
// any earlier unanswered paper of the same type.
func (e *Engine) IssuePaper(ctx context.Context, identityToken string, typ Type) (*Paper, error) {
	b, ok := e.banks[typ]
	if !ok {
		return nil, domerrors.Newf(domerrors.CodeValidation, "unknown assessment type %q", typ)
	}
	q := quotas[typ]
	if len(b.Image) < q.image || len(b.Text) < q.text {
		return nil, domerrors.Newf(domerrors.CodeInternal, "bank too small for %s paper", typ)
	}

	drawn := append(e.sample(b.Image, q.image), e.sample(b.Text, q.text)...)
	e.rng.shuffle(len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })

	paper := &Paper{
		ID:        uuid.New(),
		Type:      typ,
		IssuedAt:  e.now(),
		TimeLimit: timeLimits[typ],
	}
	ids := make([]int, 0, len(drawn))
	for _, question := range drawn {
		ids = append(ids, question.ID)
		paper.Questions = append(paper.Questions, PaperQuestion{
			ID:       question.ID,
			Question: question.Question,
			Options:  question.Options,
			HasImage: question.HasImage,
			Image:    question.Image,
			Category: question.Category,
		})
	}

	e.mu.Lock()
	for id, p := range e.pending {
		if p.identityToken == identityToken && p.typ == typ {
			delete(e.pending, id)
		}
	}
	e.pending[paper.ID] = &pendingPaper{
		identityToken: identityToken,
		typ:           typ,
		issuedAt:      paper.IssuedAt,
		questionIDs:   ids,
	}
	e.mu.Unlock()

	return paper, nil
}

// sample returns quota questions from an independently shuffled copy of the
// pool.
func (e *Engine) sample(pool []bank.Question, quota int) []bank.Question {
	shuffled := append([]bank.Question{}, pool...)
	e.rng.shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:quota]
}

// Score consumes a pending paper and records the attempt. Only answered
// questions are compared against the stored correct option; a NotAnswered
// sentinel keeps the question in the total but out of the attempted count.
// Pass requires score >= ceil(0.70 x total). The attempt counter increments
// on every accepted submission, pass or fail, and never resets.
func (e *Engine) Score(ctx context.Context, identityToken string, typ Type, paperID uuid.UUID, answers []Answer, timeTaken time.Duration, violations int) (*Result, error) {
	e.mu.Lock()
	p, ok := e.pending[paperID]
	if !ok || p.identityToken != identityToken || p.typ != typ {
		e.mu.Unlock()
		return nil, domerrors.New(domerrors.CodeValidation, "no pending paper for this submission")
	}
	now := e.now()
	if now.After(p.issuedAt.Add(timeLimits[typ] + submitGrace)) {
		delete(e.pending, paperID)
		e.mu.Unlock()
		return nil, domerrors.New(domerrors.CodeValidation, "submission received after the paper deadline")
	}
	delete(e.pending, paperID)
	e.mu.Unlock()

	b := e.banks[typ]
	onPaper := make(map[int]bool, len(p.questionIDs))
	for _, id := range p.questionIDs {
		onPaper[id] = true
	}

	answered := make(map[int]int, len(answers))
	for _, a := range answers {
		if !onPaper[a.QuestionID] {
			return nil, domerrors.Newf(domerrors.CodeValidation, "question %d is not on this paper", a.QuestionID)
		}
		if _, dup := answered[a.QuestionID]; dup {
			return nil, domerrors.Newf(domerrors.CodeValidation, "duplicate answer for question %d", a.QuestionID)
		}
		answered[a.QuestionID] = a.Selected
	}

	total := len(p.questionIDs)
	score, attempted := 0, 0
	for _, id := range p.questionIDs {
		selected, ok := answered[id]
		if !ok || selected == NotAnswered {
			continue
		}
		attempted++
		if question, found := b.Lookup(id); found && question.Correct == selected {
			score++
		}
	}

	passMark := int(math.Ceil(0.70 * float64(total)))
	result := &Result{
		Score:     score,
		Total:     total,
		Attempted: attempted,
		PassMark:  passMark,
		Passed:    score >= passMark,
	}

	count, err := e.attempts.Count(ctx, identityToken, typ)
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load attempt history")
	}
	result.AttemptNumber = count + 1

	attempt := Attempt{
		IdentityToken: identityToken,
		Type:          typ,
		Number:        result.AttemptNumber,
		Score:         score,
		Total:         total,
		Passed:        result.Passed,
		Violations:    violations,
		TimeTaken:     timeTaken,
		CompletedAt:   now,
	}
	if err := e.attempts.Record(ctx, attempt); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to record attempt")
	}

	e.logger.Info("assessment scored",
		"type", typ, "score", score, "total", total, "passed", result.Passed,
		"attempt", result.AttemptNumber, "violations", violations)

	return result, nil
}

// IssueCredential allocates the next ordinal for (LL, current year) and
// formats the credential number. The store guarantees gap-free increasing
// ordinals under concurrency.
func (e *Engine) IssueCredential(ctx context.Context) (*Credential, error) {
	now := e.now()
	ordinal, err := e.sequences.Next(ctx, LearnerCredentialType, now.Year())
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to allocate credential number")
	}
	return &Credential{
		Number:     fmt.Sprintf("%s%d%04d", LearnerCredentialType, now.Year(), ordinal),
		IssueDate:  now,
		ExpiryDate: now.AddDate(0, CredentialValidity, 0),
	}, nil
}

// AttemptCount reports submissions to date for an identity token and type.
func (e *Engine) AttemptCount(ctx context.Context, identityToken string, typ Type) (int, error) {
	count, err := e.attempts.Count(ctx, identityToken, typ)
	if err != nil {
		return 0, domerrors.Wrap(err, domerrors.CodeInternal, "failed to count attempts")
	}
	return count, nil
}

// LatestAttempt returns the most recent submission record, or a not-found
// error when none exists.
func (e *Engine) LatestAttempt(ctx context.Context, identityToken string, typ Type) (*Attempt, error) {
	attempt, err := e.attempts.Latest(ctx, identityToken, typ)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domerrors.New(domerrors.CodeNotFound, "no attempts recorded")
		}
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load latest attempt")
	}
	return attempt, nil
}

// lockedRand serializes shuffles; papers can be issued concurrently.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
