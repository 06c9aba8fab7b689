package assessment

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/sentinel"
)

type fakeAttemptStore struct {
	mu      sync.Mutex
	records []Attempt
}

func (f *fakeAttemptStore) Record(_ context.Context, attempt Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, attempt)
	return nil
}

func (f *fakeAttemptStore) Count(_ context.Context, identityToken string, typ Type) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.records {
		if a.IdentityToken == identityToken && a.Type == typ {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptStore) Latest(_ context.Context, identityToken string, typ Type) (*Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].IdentityToken == identityToken && f.records[i].Type == typ {
			latest := f.records[i]
			return &latest, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

type fakeSequenceStore struct {
	mu   sync.Mutex
	next int
}

func (f *fakeSequenceStore) Next(_ context.Context, _ string, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return f.next, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeAttemptStore) {
	t.Helper()
	attempts := &fakeAttemptStore{}
	engine, err := NewEngine(attempts, &fakeSequenceStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	require.NoError(t, err)
	return engine, attempts
}

// answersFor builds a full answer sheet with the requested number of correct
// selections; the remainder pick a deliberately wrong option.
func answersFor(t *testing.T, engine *Engine, paper *Paper, correct int) []Answer {
	t.Helper()
	answers := make([]Answer, 0, len(paper.Questions))
	for i, pq := range paper.Questions {
		q, ok := engine.banks[paper.Type].Lookup(pq.ID)
		require.True(t, ok)
		selected := q.Correct
		if i >= correct {
			selected = (q.Correct + 1) % len(q.Options)
		}
		answers = append(answers, Answer{QuestionID: pq.ID, Selected: selected})
	}
	return answers
}

func TestIssuePaperLearnerQuota(t *testing.T) {
	engine, _ := newTestEngine(t, WithSeed(7))

	paper, err := engine.IssuePaper(context.Background(), "DL-0001", TypeLearnerTest)
	require.NoError(t, err)
	require.Len(t, paper.Questions, 30)

	image, text := 0, 0
	seen := make(map[int]bool)
	for _, q := range paper.Questions {
		assert.False(t, seen[q.ID], "question %d repeated", q.ID)
		seen[q.ID] = true
		if q.HasImage {
			image++
		} else {
			text++
		}
	}
	assert.Equal(t, 20, image)
	assert.Equal(t, 10, text)
}

func TestIssuePaperColorVisionQuota(t *testing.T) {
	engine, _ := newTestEngine(t, WithSeed(7))

	paper, err := engine.IssuePaper(context.Background(), "DL-0001", TypeColorVision)
	require.NoError(t, err)
	require.Len(t, paper.Questions, 8)
	for _, q := range paper.Questions {
		assert.True(t, q.HasImage)
	}
}

func TestIssuePaperVariesBetweenIssues(t *testing.T) {
	engine, _ := newTestEngine(t)

	first, err := engine.IssuePaper(context.Background(), "DL-0001", TypeLearnerTest)
	require.NoError(t, err)
	second, err := engine.IssuePaper(context.Background(), "DL-0002", TypeLearnerTest)
	require.NoError(t, err)

	sameOrder := true
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			sameOrder = false
			break
		}
	}
	assert.False(t, sameOrder, "two papers came back in identical order")
}

func TestScorePassAtThreshold(t *testing.T) {
	engine, attempts := newTestEngine(t, WithSeed(11))
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	result, err := engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answersFor(t, engine, paper, 21), 12*time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, 21, result.Score)
	assert.Equal(t, 30, result.Total)
	assert.Equal(t, 21, result.PassMark)
	assert.True(t, result.Passed)
	assert.Equal(t, 1, result.AttemptNumber)
	require.Len(t, attempts.records, 1)
	assert.True(t, attempts.records[0].Passed)
}

func TestScoreFailBelowThreshold(t *testing.T) {
	engine, _ := newTestEngine(t, WithSeed(11))
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	result, err := engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answersFor(t, engine, paper, 20), 12*time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Score)
	assert.False(t, result.Passed)
}

func TestScoreSkippedQuestionsStayInTotal(t *testing.T) {
	engine, _ := newTestEngine(t, WithSeed(11))
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	answers := answersFor(t, engine, paper, 21)
	for i := 25; i < len(answers); i++ {
		answers[i].Selected = NotAnswered
	}

	result, err := engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answers, 5*time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, result.Total)
	assert.Equal(t, 25, result.Attempted)
	assert.Equal(t, 21, result.Score)
	assert.True(t, result.Passed)
}

func TestScoreAttemptNumberAlwaysIncrements(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
		require.NoError(t, err)
		result, err := engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answersFor(t, engine, paper, 0), time.Minute, 0)
		require.NoError(t, err)
		assert.Equal(t, want, result.AttemptNumber)
		assert.False(t, result.Passed)
	}
}

func TestScoreRejectsLateSubmission(t *testing.T) {
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := issued
	engine, _ := newTestEngine(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	now = issued.Add(20*time.Minute + 31*time.Second)
	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answersFor(t, engine, paper, 30), 20*time.Minute, 0)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	// The paper is consumed on rejection; a retry needs a fresh issue.
	now = issued
	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, nil, 0, 0)
	require.Error(t, err)
}

func TestScoreAcceptsSubmissionWithinGrace(t *testing.T) {
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := issued
	engine, _ := newTestEngine(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	now = issued.Add(20*time.Minute + 29*time.Second)
	result, err := engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID, answersFor(t, engine, paper, 30), 20*time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestScoreRejectsForeignPaper(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	_, err = engine.Score(ctx, "DL-0002", TypeLearnerTest, paper.ID, nil, 0, 0)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, uuid.New(), nil, 0, 0)
	require.Error(t, err)
}

func TestScoreRejectsTamperedAnswers(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	paper, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID,
		[]Answer{{QuestionID: 999999, Selected: 0}}, time.Minute, 0)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeValidation))

	paper, err = engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)
	dup := paper.Questions[0].ID
	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, paper.ID,
		[]Answer{{QuestionID: dup, Selected: 0}, {QuestionID: dup, Selected: 1}}, time.Minute, 0)
	require.Error(t, err)
}

func TestReissueInvalidatesEarlierPaper(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)
	second, err := engine.IssuePaper(ctx, "DL-0001", TypeLearnerTest)
	require.NoError(t, err)

	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, first.ID, nil, 0, 0)
	require.Error(t, err)

	_, err = engine.Score(ctx, "DL-0001", TypeLearnerTest, second.ID, answersFor(t, engine, second, 0), time.Minute, 0)
	require.NoError(t, err)
}

func TestIssueCredentialFormat(t *testing.T) {
	fixed := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	first, err := engine.IssueCredential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LL20260001", first.Number)
	assert.Equal(t, fixed, first.IssueDate)
	assert.Equal(t, fixed.AddDate(0, 6, 0), first.ExpiryDate)

	second, err := engine.IssueCredential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LL20260002", second.Number)
	assert.True(t, strings.HasPrefix(second.Number, "LL2026"))
}

func TestLatestAttemptNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.LatestAttempt(context.Background(), "DL-0404", TypeLearnerTest)
	require.Error(t, err)
	assert.True(t, domerrors.HasCode(err, domerrors.CodeNotFound))
}
