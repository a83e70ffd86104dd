package card

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps cards in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	cards     map[int64]Card
	logs      []ReviewLog
	nextID    int64
	nextLogID int64
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cards:     make(map[int64]Card),
		nextID:    1,
		nextLogID: 1,
	}
}

// Create stores c and assigns its id.
func (r *MemoryRepository) Create(_ context.Context, c *Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.create(c)
	return nil
}

// CreateAll stores cards under one lock.
func (r *MemoryRepository) CreateAll(_ context.Context, cards []*Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cards {
		r.create(c)
	}
	return nil
}

func (r *MemoryRepository) create(c *Card) {
	c.ID = r.nextID
	r.nextID++
	r.cards[c.ID] = c.Clone()
}

// FindByID returns a copy of the card, or nil if it does not exist.
func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	found := c.Clone()
	return &found, nil
}

// FindNextDue returns the earliest due card of course at now.
func (r *MemoryRepository) FindNextDue(_ context.Context, course string, now time.Time) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var next *Card
	for _, c := range r.cards {
		if !matchesCourse(c, course) || !c.IsDue(now) {
			continue
		}
		if next == nil || dueBefore(c, *next) {
			candidate := c
			next = &candidate
		}
	}
	if next == nil {
		return nil, nil
	}
	found := next.Clone()
	return &found, nil
}

// FindAll returns the cards of course ordered by id.
func (r *MemoryRepository) FindAll(_ context.Context, course string) ([]Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]Card, 0, len(r.cards))
	for _, c := range r.cards {
		if matchesCourse(c, course) {
			cards = append(cards, c.Clone())
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

// SaveReview replaces the stored card and appends log under one lock.
func (r *MemoryRepository) SaveReview(_ context.Context, c *Card, log *ReviewLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveReview(c, log)
}

func (r *MemoryRepository) saveReview(c *Card, log *ReviewLog) error {
	if _, ok := r.cards[c.ID]; !ok {
		return fmt.Errorf("card %d does not exist", c.ID)
	}
	r.cards[c.ID] = c.Clone()
	if log != nil {
		log.ID = r.nextLogID
		r.nextLogID++
		r.logs = append(r.logs, *log)
	}
	return nil
}

// FindReviewLogs returns the review logs of course in insertion order.
func (r *MemoryRepository) FindReviewLogs(_ context.Context, course string) ([]ReviewLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := make([]ReviewLog, 0, len(r.logs))
	for _, l := range r.logs {
		if course == "" || l.Course == course {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// Courses returns the distinct non-empty courses in ascending order.
func (r *MemoryRepository) Courses(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var courses []string
	for _, c := range r.cards {
		if c.Course != "" && !slices.Contains(courses, c.Course) {
			courses = append(courses, c.Course)
		}
	}
	slices.Sort(courses)
	return courses, nil
}

// snapshot and restore are used by YAMLRepository to persist and roll back.
func (r *MemoryRepository) snapshot() memorySnapshot {
	cards := make([]Card, 0, len(r.cards))
	for _, c := range r.cards {
		cards = append(cards, c.Clone())
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return memorySnapshot{
		Cards:     cards,
		Logs:      slices.Clone(r.logs),
		NextID:    r.nextID,
		NextLogID: r.nextLogID,
	}
}

func (r *MemoryRepository) restore(s memorySnapshot) {
	r.cards = make(map[int64]Card, len(s.Cards))
	for _, c := range s.Cards {
		r.cards[c.ID] = c.Clone()
	}
	r.logs = slices.Clone(s.Logs)
	r.nextID = max(s.NextID, 1)
	r.nextLogID = max(s.NextLogID, 1)
	for id := range r.cards {
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
	for _, l := range r.logs {
		if l.ID >= r.nextLogID {
			r.nextLogID = l.ID + 1
		}
	}
}

type memorySnapshot struct {
	Cards     []Card      `yaml:"cards"`
	Logs      []ReviewLog `yaml:"review_logs,omitempty"`
	NextID    int64       `yaml:"next_id"`
	NextLogID int64       `yaml:"next_review_log_id"`
}

func matchesCourse(c Card, course string) bool {
	return course == "" || c.Course == course
}

// dueBefore orders cards by due time, then by id.
func dueBefore(a, b Card) bool {
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.ID < b.ID
}
