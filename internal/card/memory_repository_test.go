package card

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestCard(t *testing.T, question, course string, dueAt time.Time) *Card {
	t.Helper()
	c := &Card{Question: question, Answer: question + "!", Course: course}
	require.NoError(t, c.Prepare(testNow))
	c.DueAt = dueAt
	return c
}

// repositoryContract runs the behavior every Repository shares.
func repositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	late := newTestCard(t, "late", "math", testNow.Add(-time.Hour))
	early := newTestCard(t, "early", "math", testNow.Add(-2*time.Hour))
	tied := newTestCard(t, "tied", "geo", testNow.Add(-2*time.Hour))
	future := newTestCard(t, "future", "geo", testNow.Add(time.Hour))
	for _, c := range []*Card{late, early, tied, future} {
		require.NoError(t, repo.Create(ctx, c))
		require.NotZero(t, c.ID)
	}

	t.Run("finds by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, early.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "early", got.Question)
		assert.True(t, got.DueAt.Equal(early.DueAt))

		got, err = repo.FindByID(ctx, future.ID+100)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("next due orders by due time then id", func(t *testing.T) {
		got, err := repo.FindNextDue(ctx, "", testNow)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, early.ID, got.ID)

		got, err = repo.FindNextDue(ctx, "geo", testNow)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tied.ID, got.ID)

		got, err = repo.FindNextDue(ctx, "", testNow.Add(-3*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.FindNextDue(ctx, "history", testNow)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("a card due exactly now is due", func(t *testing.T) {
		got, err := repo.FindNextDue(ctx, "geo", testNow.Add(-2*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tied.ID, got.ID)
	})

	t.Run("lists cards by course", func(t *testing.T) {
		all, err := repo.FindAll(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)

		math, err := repo.FindAll(ctx, "math")
		require.NoError(t, err)
		require.Len(t, math, 2)
		assert.Equal(t, late.ID, math[0].ID)
		assert.Equal(t, early.ID, math[1].ID)

		courses, err := repo.Courses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"geo", "math"}, courses)
	})

	t.Run("saves a review with its log", func(t *testing.T) {
		reviewed := *early
		reviewedAt := testNow
		reviewed.Repetitions = 1
		reviewed.Interval = 1
		reviewed.EasinessFactor = 2.6
		reviewed.LastReviewedAt = &reviewedAt
		reviewed.DueAt = testNow.AddDate(0, 0, 1)
		reviewed.UpdatedAt = testNow

		log := &ReviewLog{
			CardID:         reviewed.ID,
			Course:         reviewed.Course,
			Quality:        5,
			ReviewedAt:     reviewedAt,
			IntervalDays:   1,
			EasinessFactor: 2.6,
			Repetitions:    1,
		}
		require.NoError(t, repo.SaveReview(ctx, &reviewed, log))
		assert.NotZero(t, log.ID)

		got, err := repo.FindByID(ctx, early.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.Repetitions)
		assert.Equal(t, 1, got.Interval)
		assert.InDelta(t, 2.6, got.EasinessFactor, 1e-9)
		require.NotNil(t, got.LastReviewedAt)
		assert.True(t, got.LastReviewedAt.Equal(reviewedAt))
		assert.True(t, got.DueAt.Equal(reviewed.DueAt))

		next, err := repo.FindNextDue(ctx, "math", testNow)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, late.ID, next.ID)

		logs, err := repo.FindReviewLogs(ctx, "math")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, log.ID, logs[0].ID)
		assert.Equal(t, 5, logs[0].Quality)
		assert.True(t, logs[0].ReviewedAt.Equal(reviewedAt))

		logs, err = repo.FindReviewLogs(ctx, "geo")
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("creates a batch", func(t *testing.T) {
		first := newTestCard(t, "first", "history", testNow)
		second := newTestCard(t, "second", "history", testNow)
		require.NoError(t, repo.CreateAll(ctx, []*Card{first, second}))
		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)

		history, err := repo.FindAll(ctx, "history")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}

func TestMemoryRepository(t *testing.T) {
	repositoryContract(t, NewMemoryRepository())
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := &Card{Type: TypeMCQ, Question: "q", Options: StringList{"a", "b"}, CorrectAnswer: "a"}
	require.NoError(t, c.Prepare(testNow))
	require.NoError(t, repo.Create(ctx, c))

	c.Options[0] = "mutated"
	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Options[0])

	got.Options[1] = "mutated"
	again, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", again.Options[1])
}

func TestMemoryRepository_SaveReviewOfMissingCard(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.SaveReview(context.Background(), &Card{ID: 9}, &ReviewLog{CardID: 9})
	assert.Error(t, err)

	logs, err := repo.FindReviewLogs(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
