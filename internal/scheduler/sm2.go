package scheduler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/at-ishikawa/studydeck/internal/card"
)

const (
	MinQuality = 0
	MaxQuality = 5

	// PassingQuality is the lowest rating counted as a successful recall.
	PassingQuality = 3
)

// Ratings used by the study clients.
const (
	QualityHard   = 2
	QualityMedium = 3
	QualityEasy   = 5
)

// ParseQuality accepts hard, medium, easy or a digit from 0 to 5.
func ParseQuality(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "hard":
		return QualityHard, nil
	case "medium":
		return QualityMedium, nil
	case "easy":
		return QualityEasy, nil
	}
	q, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: quality %q is neither a rating nor a number", ErrInvalidInput, s)
	}
	if err := validateQuality(q); err != nil {
		return 0, err
	}
	return q, nil
}

func validateQuality(quality int) error {
	if quality < MinQuality || quality > MaxQuality {
		return fmt.Errorf("%w: quality %d is outside [%d, %d]", ErrInvalidInput, quality, MinQuality, MaxQuality)
	}
	return nil
}

// UpdateEasinessFactor calculates new EF based on quality grade
func UpdateEasinessFactor(ef float64, quality int) float64 {
	if ef == 0 {
		ef = card.DefaultEasinessFactor
	}

	q := float64(quality)
	newEF := ef + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	return math.Max(newEF, card.MinEasinessFactor)
}

// NextInterval calculates the next review interval in days.
// ef is the factor before the current review is applied.
func NextInterval(interval, repetitions int, ef float64, quality int) int {
	if quality < PassingQuality {
		return 1
	}
	switch repetitions {
	case 0:
		return 1
	case 1:
		return 6
	default:
		if ef == 0 {
			ef = card.DefaultEasinessFactor
		}
		return max(int(math.Round(float64(interval)*ef)), 1)
	}
}

// Review returns c after a rating of quality at now. c itself is not changed.
func Review(c card.Card, quality int, now time.Time) card.Card {
	next := c.Clone()
	next.Interval = NextInterval(c.Interval, c.Repetitions, c.EasinessFactor, quality)
	if quality < PassingQuality {
		next.Repetitions = 0
	} else {
		next.Repetitions = c.Repetitions + 1
	}
	next.EasinessFactor = UpdateEasinessFactor(c.EasinessFactor, quality)

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.DueAt = DueAt(reviewedAt, next.Interval)
	next.UpdatedAt = now
	return next
}

// DueAt returns the time a card reviewed at reviewedAt becomes due again.
func DueAt(reviewedAt time.Time, interval int) time.Time {
	return reviewedAt.AddDate(0, 0, interval)
}
