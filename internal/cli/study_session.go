package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
)

//go:generate mockgen -source=study_session.go -destination=../mocks/cli/mock_studier.go -package=mock_cli Studier

// Studier is either the local scheduler or the API client.
type Studier interface {
	NextDueCard(ctx context.Context, course string) (*card.Card, error)
	RecordReview(ctx context.Context, cardID int64, quality int) (*card.Card, error)
}

const ratingPrompt = "How well did you recall it? [hard/medium/easy, 0-5, skip, quit]: "

// StudySession asks due cards one at a time until none is left.
type StudySession struct {
	*InteractiveQuizCLI
	studier Studier
	course  string

	skipped  map[int64]struct{}
	reviewed int
}

func NewStudySession(studier Studier, course string, stdin io.Reader, stdout io.Writer) *StudySession {
	return &StudySession{
		InteractiveQuizCLI: newInteractiveQuizCLI(stdin, stdout),
		studier:            studier,
		course:             course,
		skipped:            make(map[int64]struct{}),
	}
}

// Reviewed returns how many ratings were recorded.
func (s *StudySession) Reviewed() int {
	return s.reviewed
}

// Run studies until no card is due, the user quits or ctx is done. The
// session has stopped when Run returns.
func (s *StudySession) Run(ctx context.Context) error {
	err := s.InteractiveQuizCLI.Run(ctx, s)
	fmt.Fprintf(s.stdoutWriter, "Reviewed %d card(s).\n", s.reviewed)
	return err
}

func (s *StudySession) Session(ctx context.Context) error {
	current, err := s.studier.NextDueCard(ctx, s.course)
	if err != nil {
		return fmt.Errorf("NextDueCard() > %w", err)
	}
	if current == nil {
		_, _ = s.green.Fprintln(s.stdoutWriter, "No cards due for review. Great job!")
		return errEnd
	}
	if _, ok := s.skipped[current.ID]; ok {
		fmt.Fprintln(s.stdoutWriter, "Only skipped cards are due. See you later!")
		return errEnd
	}

	fmt.Fprintln(s.stdoutWriter)
	if current.Course != "" {
		_, _ = s.italic.Fprintf(s.stdoutWriter, "[%s] ", current.Course)
	}
	_, _ = s.bold.Fprintln(s.stdoutWriter, current.Question)

	if current.Type == card.TypeMCQ {
		if err := s.askChoice(ctx, current); err != nil {
			return err
		}
	} else {
		fmt.Fprint(s.stdoutWriter, "Press Enter to show the answer...")
		input, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if isQuit(input) {
			return errEnd
		}
	}
	fmt.Fprintf(s.stdoutWriter, "Answer: %s\n", s.italic.Sprint(current.Back()))

	quality, err := s.askRating(ctx)
	if err != nil {
		return err
	}
	if quality < 0 {
		s.skipped[current.ID] = struct{}{}
		return nil
	}

	updated, err := s.studier.RecordReview(ctx, current.ID, quality)
	if err != nil {
		return fmt.Errorf("RecordReview(%d) > %w", current.ID, err)
	}
	s.reviewed++
	_, _ = s.green.Fprintf(s.stdoutWriter, "Next review in %d day(s), on %s\n",
		updated.Interval, updated.DueAt.Local().Format(time.DateOnly))
	return nil
}

// askChoice lists the options of a multiple choice card and reports whether
// the chosen one is correct. An empty answer reveals the correct option.
func (s *StudySession) askChoice(ctx context.Context, c *card.Card) error {
	for i, option := range c.Options {
		fmt.Fprintf(s.stdoutWriter, "  %d) %s\n", i+1, option)
	}
	for {
		fmt.Fprintf(s.stdoutWriter, "Your choice (1-%d, Enter to reveal): ", len(c.Options))
		input, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if input == "" {
			return nil
		}
		if isQuit(input) {
			return errEnd
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(c.Options) {
			_, _ = s.red.Fprintf(s.stdoutWriter, "%q is not one of the options\n", input)
			continue
		}
		if c.Options[n-1] == c.CorrectAnswer {
			fmt.Fprint(s.stdoutWriter, "✅ ")
			_, _ = s.green.Fprintln(s.stdoutWriter, "Correct!")
		} else {
			fmt.Fprint(s.stdoutWriter, "❌ ")
			_, _ = s.red.Fprintln(s.stdoutWriter, "Wrong.")
		}
		return nil
	}
}

// askRating returns the quality, or -1 when the card is skipped.
func (s *StudySession) askRating(ctx context.Context) (int, error) {
	for {
		fmt.Fprint(s.stdoutWriter, ratingPrompt)
		input, err := s.readLine(ctx)
		if err != nil {
			return 0, err
		}
		switch {
		case isQuit(input):
			return 0, errEnd
		case strings.EqualFold(input, "skip") || strings.EqualFold(input, "s"):
			return -1, nil
		}

		quality, err := scheduler.ParseQuality(input)
		if err != nil {
			if !errors.Is(err, scheduler.ErrInvalidInput) {
				return 0, err
			}
			_, _ = s.red.Fprintf(s.stdoutWriter, "%q is not a rating\n", input)
			continue
		}
		return quality, nil
	}
}
