package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/studydeck/internal/card"
	mock_card "github.com/at-ishikawa/studydeck/internal/mocks/card"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T) (*Scheduler, *card.MemoryRepository, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := card.NewMemoryRepository()
	return New(repo, WithClock(clock.Now)), repo, clock
}

func addCard(t *testing.T, s *Scheduler, question, course string) *card.Card {
	t.Helper()
	c := &card.Card{Question: question, Answer: question + " answer", Course: course}
	require.NoError(t, s.AddCard(context.Background(), c))
	return c
}

func TestScheduler_ReviewLifecycle(t *testing.T) {
	ctx := context.Background()
	s, repo, clock := newTestScheduler(t)
	c := addCard(t, s, "capital of France", "geo")
	assert.Equal(t, card.PhaseNew, c.Phase())

	got, err := s.RecordReview(ctx, c.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Repetitions)
	assert.Equal(t, 1, got.Interval)
	assert.InDelta(t, 2.5, got.EasinessFactor, 1e-9)
	assert.Equal(t, clock.Now().Add(24*time.Hour), got.DueAt)
	assert.Equal(t, card.PhaseLearning, got.Phase())

	clock.Advance(24 * time.Hour)
	got, err = s.RecordReview(ctx, c.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Repetitions)
	assert.Equal(t, 6, got.Interval)

	clock.Advance(6 * 24 * time.Hour)
	got, err = s.RecordReview(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Repetitions)
	assert.Equal(t, 1, got.Interval)
	assert.InDelta(t, 2.18, got.EasinessFactor, 1e-9)
	assert.Equal(t, card.PhaseRelearning, got.Phase())

	stored, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	logs, err := repo.FindReviewLogs(ctx, "")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []int{4, 4, 2}, []int{logs[0].Quality, logs[1].Quality, logs[2].Quality})
	assert.Equal(t, "geo", logs[2].Course)
	assert.Equal(t, 1, logs[2].IntervalDays)
}

func TestScheduler_RecordReviewErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cardID  func(existing int64) int64
		quality int
		wantErr error
	}{
		{
			name:    "missing card",
			cardID:  func(existing int64) int64 { return existing + 100 },
			quality: 3,
			wantErr: ErrNotFound,
		},
		{
			name:    "quality above range",
			cardID:  func(existing int64) int64 { return existing },
			quality: 7,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "negative quality",
			cardID:  func(existing int64) int64 { return existing },
			quality: -1,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "malformed card id",
			cardID:  func(int64) int64 { return 0 },
			quality: 3,
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _ := newTestScheduler(t)
			c := addCard(t, s, "question", "")
			before, err := repo.FindByID(ctx, c.ID)
			require.NoError(t, err)

			got, err := s.RecordReview(ctx, tt.cardID(c.ID), tt.quality)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)

			after, err := repo.FindByID(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			logs, err := repo.FindReviewLogs(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, logs)
		})
	}
}

func TestScheduler_NextDueCard(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestScheduler(t)

	first := addCard(t, s, "first", "math")
	second := addCard(t, s, "second", "math")
	other := addCard(t, s, "other", "geo")

	t.Run("ties are broken by id", func(t *testing.T) {
		got, err := s.NextDueCard(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("re-requesting returns the same card", func(t *testing.T) {
		got, err := s.NextDueCard(ctx, "math")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("filters by course", func(t *testing.T) {
		got, err := s.NextDueCard(ctx, "geo")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, other.ID, got.ID)
	})

	t.Run("reviewed cards are no longer due", func(t *testing.T) {
		_, err := s.RecordReview(ctx, first.ID, 5)
		require.NoError(t, err)

		got, err := s.NextDueCard(ctx, "math")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.ID, got.ID)

		_, err = s.RecordReview(ctx, second.ID, 5)
		require.NoError(t, err)
		got, err = s.NextDueCard(ctx, "math")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("cards become due again after their interval", func(t *testing.T) {
		clock.Advance(24 * time.Hour)
		got, err := s.NextDueCard(ctx, "math")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	})
}

func TestScheduler_AddCard(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		card    card.Card
		wantErr bool
	}{
		{
			name: "basic card",
			card: card.Card{Question: "2+2", Answer: "4"},
		},
		{
			name: "flashcard alias",
			card: card.Card{Type: "flashcard", Question: "2+2", Answer: "4"},
		},
		{
			name: "multiple choice card",
			card: card.Card{Type: card.TypeMCQ, Question: "2+2", Options: card.StringList{"3", "4"}, CorrectAnswer: "4"},
		},
		{
			name:    "missing question",
			card:    card.Card{Answer: "4"},
			wantErr: true,
		},
		{
			name:    "correct answer not among the options",
			card:    card.Card{Type: card.TypeMCQ, Question: "2+2", Options: card.StringList{"3", "5"}, CorrectAnswer: "4"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, clock := newTestScheduler(t)
			c := tt.card
			err := s.AddCard(ctx, &c)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.ErrorIs(t, err, card.ErrInvalidCard)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, c.ID)
			assert.Equal(t, card.DefaultEasinessFactor, c.EasinessFactor)
			assert.Zero(t, c.Interval)
			assert.Zero(t, c.Repetitions)
			assert.Equal(t, clock.Now(), c.DueAt)

			got, err := s.Card(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, c, *got)
		})
	}
}

func TestScheduler_AddCards(t *testing.T) {
	ctx := context.Background()

	t.Run("stores every card", func(t *testing.T) {
		s, repo, clock := newTestScheduler(t)
		cards := []*card.Card{
			{Question: "1+1", Answer: "2", Course: "math"},
			{Type: card.TypeMCQ, Question: "2+2", Options: card.StringList{"3", "4"}, CorrectAnswer: "4", Course: "math"},
		}
		require.NoError(t, s.AddCards(ctx, cards))
		for _, c := range cards {
			assert.NotZero(t, c.ID)
			assert.Equal(t, clock.Now(), c.DueAt)
		}

		stored, err := repo.FindAll(ctx, "math")
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("one invalid card stores nothing", func(t *testing.T) {
		s, repo, _ := newTestScheduler(t)
		err := s.AddCards(ctx, []*card.Card{
			{Question: "1+1", Answer: "2"},
			{Question: "2+2"},
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorContains(t, err, "cards[1]")

		stored, err := repo.FindAll(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestScheduler_Card(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	_, err := s.Card(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Card(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScheduler_RepositoryErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	existing := &card.Card{ID: 3, Question: "q", Answer: "a", EasinessFactor: 2.5, DueAt: now}
	errDB := errors.New("connection reset")

	tests := []struct {
		name      string
		setupMock func(repo *mock_card.MockRepository)
		run       func(s *Scheduler) error
	}{
		{
			name: "find next due fails",
			setupMock: func(repo *mock_card.MockRepository) {
				repo.EXPECT().FindNextDue(gomock.Any(), "math", now).Return(nil, errDB)
			},
			run: func(s *Scheduler) error {
				_, err := s.NextDueCard(ctx, "math")
				return err
			},
		},
		{
			name: "lookup fails",
			setupMock: func(repo *mock_card.MockRepository) {
				repo.EXPECT().FindByID(gomock.Any(), int64(3)).Return(nil, errDB)
			},
			run: func(s *Scheduler) error {
				_, err := s.RecordReview(ctx, 3, 4)
				return err
			},
		},
		{
			name: "save fails",
			setupMock: func(repo *mock_card.MockRepository) {
				repo.EXPECT().FindByID(gomock.Any(), int64(3)).Return(existing, nil)
				repo.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, c *card.Card, log *card.ReviewLog) error {
						assert.Equal(t, int64(3), log.CardID)
						assert.Equal(t, 4, log.Quality)
						assert.Equal(t, 1, c.Repetitions)
						return errDB
					})
			},
			run: func(s *Scheduler) error {
				_, err := s.RecordReview(ctx, 3, 4)
				return err
			},
		},
		{
			name: "create fails",
			setupMock: func(repo *mock_card.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errDB)
			},
			run: func(s *Scheduler) error {
				return s.AddCard(ctx, &card.Card{Question: "q", Answer: "a"})
			},
		},
		{
			name: "batch create fails",
			setupMock: func(repo *mock_card.MockRepository) {
				repo.EXPECT().CreateAll(gomock.Any(), gomock.Len(2)).Return(errDB)
			},
			run: func(s *Scheduler) error {
				return s.AddCards(ctx, []*card.Card{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mock_card.NewMockRepository(ctrl)
			tt.setupMock(repo)

			s := New(repo, WithClock(func() time.Time { return now }))
			err := tt.run(s)
			assert.ErrorIs(t, err, errDB)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.NotErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestScheduler_ConcurrentReviewsOfOneCard(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newTestScheduler(t)
	c := addCard(t, s, "question", "")

	const reviews = 10
	var wg sync.WaitGroup
	for i := 0; i < reviews; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordReview(ctx, c.ID, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, reviews, got.Repetitions)

	logs, err := repo.FindReviewLogs(ctx, "")
	require.NoError(t, err)
	require.Len(t, logs, reviews)
	for i, log := range logs {
		assert.Equal(t, i+1, log.Repetitions)
	}
	assert.Empty(t, s.locks.entries)
}
