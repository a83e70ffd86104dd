// Package scheduler decides which card is due next and applies SM-2 ratings
// to cards.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/at-ishikawa/studydeck/internal/card"
)

// Scheduler implements spaced repetition on top of a card.Repository.
// Reviews of the same card are applied one at a time; reviews of different
// cards run concurrently.
type Scheduler struct {
	repo  card.Repository
	now   func() time.Time
	locks *keyedMutex
}

type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(repo card.Repository, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:  repo,
		now:   time.Now,
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in UTC with the precision stored by every
// repository.
func (s *Scheduler) Now() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// NextDueCard returns the card of course with the earliest due time, or nil
// when nothing is due. An empty course means every course.
func (s *Scheduler) NextDueCard(ctx context.Context, course string) (*card.Card, error) {
	now := s.Now()
	c, err := s.repo.FindNextDue(ctx, course, now)
	if err != nil {
		return nil, fmt.Errorf("repo.FindNextDue() > %w", err)
	}
	if c == nil {
		slog.Debug("no card due", "course", course, "now", now)
		return nil, nil
	}
	slog.Debug("next due card", "id", c.ID, "course", c.Course, "due_at", c.DueAt)
	return c, nil
}

// RecordReview applies a rating to the card and persists the new schedule
// together with a review log entry.
func (s *Scheduler) RecordReview(ctx context.Context, cardID int64, quality int) (*card.Card, error) {
	if cardID <= 0 {
		return nil, fmt.Errorf("%w: card id %d", ErrInvalidInput, cardID)
	}
	if err := validateQuality(quality); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(cardID)
	defer unlock()

	current, err := s.repo.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("repo.FindByID(%d) > %w", cardID, err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}

	now := s.Now()
	next := Review(*current, quality, now)
	log := &card.ReviewLog{
		CardID:         next.ID,
		Course:         next.Course,
		Quality:        quality,
		ReviewedAt:     now,
		IntervalDays:   next.Interval,
		EasinessFactor: next.EasinessFactor,
		Repetitions:    next.Repetitions,
	}
	if err := s.repo.SaveReview(ctx, &next, log); err != nil {
		return nil, fmt.Errorf("repo.SaveReview(%d) > %w", cardID, err)
	}

	slog.Debug("recorded review",
		"id", next.ID,
		"quality", quality,
		"phase", next.Phase(),
		"interval", next.Interval,
		"easiness_factor", next.EasinessFactor,
		"due_at", next.DueAt,
	)
	return &next, nil
}

// AddCard validates c, resets its schedule so it is due now and stores it.
func (s *Scheduler) AddCard(ctx context.Context, c *card.Card) error {
	if err := c.Prepare(s.Now()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return fmt.Errorf("repo.Create() > %w", err)
	}
	return nil
}

// AddCards validates every card before storing any, then stores them all
// in one repository call.
func (s *Scheduler) AddCards(ctx context.Context, cards []*card.Card) error {
	now := s.Now()
	for i, c := range cards {
		if err := c.Prepare(now); err != nil {
			return fmt.Errorf("%w: cards[%d]: %w", ErrInvalidInput, i, err)
		}
	}
	if err := s.repo.CreateAll(ctx, cards); err != nil {
		return fmt.Errorf("repo.CreateAll() > %w", err)
	}
	return nil
}

// Card returns the card with id.
func (s *Scheduler) Card(ctx context.Context, id int64) (*card.Card, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: card id %d", ErrInvalidInput, id)
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repo.FindByID(%d) > %w", id, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: card %d", ErrNotFound, id)
	}
	return c, nil
}

// keyedMutex hands out one mutex per card id and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu      sync.Mutex
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[int64]*keyedMutexEntry)}
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	entry, ok := k.entries[id]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[id] = entry
	}
	entry.waiters++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
