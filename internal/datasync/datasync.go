// Package datasync moves cards between YAML deck files, git repositories of
// decks and a card repository.
package datasync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/at-ishikawa/studydeck/internal/card"
)

// ImportResult tracks counts for an import.
type ImportResult struct {
	New        int
	Skipped    int
	Invalid    int
	ReviewLogs int
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun bool
	// KeepSchedule restores the scheduling state stored in exported decks
	// instead of making every imported card due now.
	KeepSchedule bool
	// ReviewLogs are replayed onto the new cards they belong to when
	// KeepSchedule is set. CardID refers to the ids in the deck files.
	ReviewLogs []card.ReviewLog
}

// Importer writes deck cards to a repository.
type Importer struct {
	repo   card.Repository
	now    func() time.Time
	writer io.Writer
}

// NewImporter creates a new Importer.
func NewImporter(repo card.Repository, now func() time.Time, writer io.Writer) *Importer {
	return &Importer{
		repo:   repo,
		now:    now,
		writer: writer,
	}
}

func importKey(course, question string) string {
	return course + "\x00" + question
}

// Import creates the cards whose course and question are not stored yet.
func (imp *Importer) Import(ctx context.Context, cards []card.Card, opts ImportOptions) (*ImportResult, error) {
	existing, err := imp.repo.FindAll(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("repo.FindAll() > %w", err)
	}
	seen := make(map[string]struct{}, len(existing)+len(cards))
	for _, c := range existing {
		seen[importKey(c.Course, c.Question)] = struct{}{}
	}

	var result ImportResult
	created := make(map[int64]card.Card)
	now := imp.now()
	for _, source := range cards {
		c := source.Clone()
		c.ID = 0
		if err := c.Prepare(now); err != nil {
			fmt.Fprintf(imp.writer, "  [INVALID]  %q (%s): %v\n", source.Question, source.Course, err)
			result.Invalid++
			continue
		}

		key := importKey(c.Course, c.Question)
		if _, ok := seen[key]; ok {
			fmt.Fprintf(imp.writer, "  [SKIP]  %q (%s)\n", c.Question, c.Course)
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}

		if opts.KeepSchedule && source.EasinessFactor > 0 {
			restoreSchedule(&c, source)
		}
		if !opts.DryRun {
			if err := imp.repo.Create(ctx, &c); err != nil {
				return nil, fmt.Errorf("repo.Create(%q) > %w", c.Question, err)
			}
			if source.ID != 0 {
				created[source.ID] = c
			}
		}
		fmt.Fprintf(imp.writer, "  [NEW]  %q (%s)\n", c.Question, c.Course)
		result.New++
	}

	if opts.KeepSchedule && !opts.DryRun {
		n, err := imp.replayReviewLogs(ctx, created, opts.ReviewLogs)
		if err != nil {
			return nil, err
		}
		result.ReviewLogs = n
	}
	return &result, nil
}

// replayReviewLogs stores the logs of the cards created by this import.
// Logs of skipped cards are dropped: the stored card has its own history.
func (imp *Importer) replayReviewLogs(ctx context.Context, created map[int64]card.Card, logs []card.ReviewLog) (int, error) {
	var n int
	for _, source := range logs {
		c, ok := created[source.CardID]
		if !ok {
			continue
		}
		log := source
		log.ID = 0
		log.CardID = c.ID
		log.Course = c.Course
		log.ReviewedAt = log.ReviewedAt.UTC()
		if err := imp.repo.SaveReview(ctx, &c, &log); err != nil {
			return n, fmt.Errorf("repo.SaveReview(%d) > %w", c.ID, err)
		}
		n++
	}
	return n, nil
}

func restoreSchedule(c *card.Card, source card.Card) {
	c.EasinessFactor = max(source.EasinessFactor, card.MinEasinessFactor)
	c.Interval = max(source.Interval, 0)
	c.Repetitions = max(source.Repetitions, 0)
	if !source.DueAt.IsZero() {
		c.DueAt = source.DueAt.UTC()
	}
	if source.LastReviewedAt != nil {
		t := source.LastReviewedAt.UTC()
		c.LastReviewedAt = &t
	}
	if !source.CreatedAt.IsZero() {
		c.CreatedAt = source.CreatedAt.UTC()
	}
}

// ExportResult tracks counts for an export.
type ExportResult struct {
	Decks      int
	Cards      int
	ReviewLogs int
}

// Exporter writes the repository content as deck files.
type Exporter struct {
	repo card.Repository
}

// NewExporter creates a new Exporter.
func NewExporter(repo card.Repository) *Exporter {
	return &Exporter{repo: repo}
}

// Export writes one deck per course and the review logs to dir. Courses
// restricts the export to some courses; none means every card, including the
// cards without a course.
func (e *Exporter) Export(ctx context.Context, dir string, courses ...string) (*ExportResult, error) {
	decks, err := e.decks(ctx, courses)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var result ExportResult
	names := make(map[string]struct{}, len(decks))
	for _, deck := range decks {
		path := filepath.Join(dir, uniqueDeckFileName(deck.Course, names))
		if err := writeYAML(path, deck); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		result.Decks++
		result.Cards += len(deck.Cards)
	}

	logs, err := e.reviewLogs(ctx, courses, decks)
	if err != nil {
		return nil, err
	}
	if err := writeYAML(filepath.Join(dir, ReviewLogsFile), logs); err != nil {
		return nil, fmt.Errorf("write %s: %w", ReviewLogsFile, err)
	}
	result.ReviewLogs = len(logs)
	return &result, nil
}

// decks groups the cards to export by course, in course order. Courses
// without cards are left out.
func (e *Exporter) decks(ctx context.Context, courses []string) ([]Deck, error) {
	if len(courses) == 0 {
		cards, err := e.repo.FindAll(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("repo.FindAll() > %w", err)
		}
		byCourse := make(map[string][]card.Card)
		for _, c := range cards {
			byCourse[c.Course] = append(byCourse[c.Course], c)
		}
		decks := make([]Deck, 0, len(byCourse))
		for course, cards := range byCourse {
			decks = append(decks, Deck{Course: course, Cards: cards})
		}
		slices.SortFunc(decks, func(a, b Deck) int {
			return strings.Compare(a.Course, b.Course)
		})
		return decks, nil
	}

	var decks []Deck
	for _, course := range courses {
		cards, err := e.repo.FindAll(ctx, course)
		if err != nil {
			return nil, fmt.Errorf("repo.FindAll(%s) > %w", course, err)
		}
		if len(cards) == 0 {
			continue
		}
		decks = append(decks, Deck{Course: course, Cards: cards})
	}
	return decks, nil
}

func (e *Exporter) reviewLogs(ctx context.Context, courses []string, decks []Deck) ([]card.ReviewLog, error) {
	if len(courses) == 0 {
		logs, err := e.repo.FindReviewLogs(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("repo.FindReviewLogs() > %w", err)
		}
		if logs == nil {
			logs = []card.ReviewLog{}
		}
		return logs, nil
	}

	logs := []card.ReviewLog{}
	for _, deck := range decks {
		courseLogs, err := e.repo.FindReviewLogs(ctx, deck.Course)
		if err != nil {
			return nil, fmt.Errorf("repo.FindReviewLogs(%s) > %w", deck.Course, err)
		}
		logs = append(logs, courseLogs...)
	}
	return logs, nil
}
