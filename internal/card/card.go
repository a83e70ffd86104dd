// Package card provides the flashcard domain model, its review log and the
// repositories that persist them.
package card

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
)

// ErrInvalidCard is returned when card content fails validation.
var ErrInvalidCard = errors.New("invalid card")

// Type is the variant of a card.
type Type string

const (
	TypeBasic Type = "basic"
	TypeMCQ   Type = "mcq"

	// typeFlashcard is the name the study client uses for basic cards.
	typeFlashcard Type = "flashcard"
)

// ParseType normalizes a card type name. An empty name means basic.
func ParseType(name string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(name))) {
	case "", TypeBasic, typeFlashcard:
		return TypeBasic, nil
	case TypeMCQ:
		return TypeMCQ, nil
	}
	return "", fmt.Errorf("%w: unknown card type %q", ErrInvalidCard, name)
}

// Phase is the scheduling sub-state of a card, derived from its fields.
type Phase string

const (
	PhaseNew        Phase = "new"
	PhaseLearning   Phase = "learning"
	PhaseReview     Phase = "review"
	PhaseRelearning Phase = "relearning"
)

// Card is a single flashcard or multiple choice question together with its
// scheduling state. Only the scheduler mutates the scheduling fields.
type Card struct {
	ID            int64      `db:"id" json:"id" yaml:"id"`
	Type          Type       `db:"type" json:"type" yaml:"type"`
	Question      string     `db:"question" json:"question" yaml:"question"`
	Answer        string     `db:"answer" json:"answer,omitempty" yaml:"answer,omitempty"`
	Options       StringList `db:"options" json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer string     `db:"correct_answer" json:"correctAnswer,omitempty" yaml:"correct_answer,omitempty"`
	Course        string     `db:"course" json:"course,omitempty" yaml:"course,omitempty"`

	EasinessFactor float64    `db:"easiness_factor" json:"easinessFactor" yaml:"easiness_factor"`
	Interval       int        `db:"interval_days" json:"interval" yaml:"interval_days"`
	Repetitions    int        `db:"repetitions" json:"repetitions" yaml:"repetitions"`
	DueAt          time.Time  `db:"due_at" json:"dueAt" yaml:"due_at"`
	LastReviewedAt *time.Time `db:"last_reviewed_at" json:"lastReviewedAt,omitempty" yaml:"last_reviewed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt" yaml:"updated_at"`
}

// Prepare validates the content of a new card and resets its scheduling
// fields so that it is due at createdAt.
func (c *Card) Prepare(createdAt time.Time) error {
	t, err := ParseType(string(c.Type))
	if err != nil {
		return err
	}
	c.Type = t
	c.Question = strings.TrimSpace(c.Question)
	c.Course = strings.TrimSpace(c.Course)
	if err := c.validateContent(); err != nil {
		return err
	}

	c.EasinessFactor = DefaultEasinessFactor
	c.Interval = 0
	c.Repetitions = 0
	c.LastReviewedAt = nil
	c.DueAt = createdAt
	c.CreatedAt = createdAt
	c.UpdatedAt = createdAt
	return nil
}

func (c *Card) validateContent() error {
	if c.Question == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidCard)
	}
	switch c.Type {
	case TypeBasic:
		if strings.TrimSpace(c.Answer) == "" {
			return fmt.Errorf("%w: answer is required for a basic card", ErrInvalidCard)
		}
	case TypeMCQ:
		if len(c.Options) < 2 {
			return fmt.Errorf("%w: a multiple choice card needs at least two options", ErrInvalidCard)
		}
		if !slices.Contains(c.Options, c.CorrectAnswer) {
			return fmt.Errorf("%w: correct answer %q is not one of the options", ErrInvalidCard, c.CorrectAnswer)
		}
	}
	return nil
}

// Phase reports where the card is in the new/learning/review cycle.
func (c Card) Phase() Phase {
	switch {
	case c.Repetitions == 0 && c.LastReviewedAt == nil:
		return PhaseNew
	case c.Repetitions == 0:
		return PhaseRelearning
	case c.Repetitions <= 2:
		return PhaseLearning
	default:
		return PhaseReview
	}
}

// IsDue reports whether the card may be presented at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.DueAt.After(now)
}

// Back returns the text that answers the card.
func (c Card) Back() string {
	if c.Type == TypeMCQ {
		return c.CorrectAnswer
	}
	return c.Answer
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	if c.Options != nil {
		c.Options = slices.Clone(c.Options)
	}
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return c
}

// inUTC converts the timestamps read from a database driver to UTC.
func (c *Card) inUTC() {
	c.DueAt = c.DueAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if c.LastReviewedAt != nil {
		t := c.LastReviewedAt.UTC()
		c.LastReviewedAt = &t
	}
}

// StringList is stored as a JSON array in a single column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(options) > %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type %T for options", src)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("json.Unmarshal(options) > %w", err)
	}
	if len(list) == 0 {
		list = nil
	}
	*l = list
	return nil
}
