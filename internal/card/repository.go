package card

import (
	"context"
	"time"
)

// ReviewLog records one rating applied to a card and the schedule it produced.
type ReviewLog struct {
	ID             int64     `db:"id" json:"id" yaml:"id"`
	CardID         int64     `db:"card_id" json:"cardId" yaml:"card_id"`
	Course         string    `db:"course" json:"course,omitempty" yaml:"course,omitempty"`
	Quality        int       `db:"quality" json:"quality" yaml:"quality"`
	ReviewedAt     time.Time `db:"reviewed_at" json:"reviewedAt" yaml:"reviewed_at"`
	IntervalDays   int       `db:"interval_days" json:"intervalDays" yaml:"interval_days"`
	EasinessFactor float64   `db:"easiness_factor" json:"easinessFactor" yaml:"easiness_factor"`
	Repetitions    int       `db:"repetitions" json:"repetitions" yaml:"repetitions"`
}

//go:generate mockgen -source=repository.go -destination=../mocks/card/mock_repository.go -package=mock_card

// Repository stores cards and their review logs.
//
// Lookups return (nil, nil) when nothing matches. An empty course matches
// every course.
type Repository interface {
	Create(ctx context.Context, c *Card) error
	// CreateAll stores every card or none of them.
	CreateAll(ctx context.Context, cards []*Card) error
	FindByID(ctx context.Context, id int64) (*Card, error)
	// FindNextDue returns the card with the earliest due time not after now,
	// breaking ties by ascending id.
	FindNextDue(ctx context.Context, course string, now time.Time) (*Card, error)
	FindAll(ctx context.Context, course string) ([]Card, error)
	// SaveReview persists the scheduling fields of c and appends log in a
	// single atomic step.
	SaveReview(ctx context.Context, c *Card, log *ReviewLog) error
	FindReviewLogs(ctx context.Context, course string) ([]ReviewLog, error)
	Courses(ctx context.Context) ([]string, error)
}
