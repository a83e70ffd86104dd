package datasync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/studydeck/internal/card"
)

// ReviewLogsFile is written next to the exported decks and is not a deck.
const ReviewLogsFile = "review_logs.yml"

// Deck is one YAML deck file. Cards without a course belong to the deck's
// course, and a deck without a course is named after its file.
type Deck struct {
	Course string      `yaml:"course,omitempty"`
	Cards  []card.Card `yaml:"cards"`
}

// DeckFiles lists the deck files of dir in name order.
func DeckFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("os.ReadDir(%s) > %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || name == ReviewLogsFile {
			continue
		}
		switch filepath.Ext(name) {
		case ".yml", ".yaml":
			files = append(files, filepath.Join(dir, name))
		}
	}
	slices.Sort(files)
	return files, nil
}

// LoadDecks reads every deck file in dir and returns their cards in file
// order.
func LoadDecks(ctx context.Context, dir string) ([]card.Card, error) {
	files, err := DeckFiles(dir)
	if err != nil {
		return nil, err
	}

	decks := make([][]card.Card, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cards, err := readDeck(file)
			if err != nil {
				return err
			}
			decks[i] = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(decks...), nil
}

func readDeck(path string) ([]card.Card, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	var deck Deck
	if err := yaml.Unmarshal(content, &deck); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
	}

	course := deck.Course
	if course == "" {
		course = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i := range deck.Cards {
		if strings.TrimSpace(deck.Cards[i].Course) == "" {
			deck.Cards[i].Course = course
		}
	}
	return deck.Cards, nil
}

// deckFileName turns a course name into a file name.
func deckFileName(course string) string {
	if course == "" {
		return "default.yml"
	}
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, course)
	return name + ".yml"
}

// uniqueDeckFileName returns the file name of course, numbered when another
// course already took it, and records it in used.
func uniqueDeckFileName(course string, used map[string]struct{}) string {
	name := deckFileName(course)
	base := strings.TrimSuffix(name, ".yml")
	for i := 2; ; i++ {
		if _, ok := used[name]; !ok {
			break
		}
		name = fmt.Sprintf("%s_%d.yml", base, i)
	}
	used[name] = struct{}{}
	return name
}

// LoadReviewLogs reads the review logs exported to dir. A missing file means
// no logs.
func LoadReviewLogs(dir string) ([]card.ReviewLog, error) {
	path := filepath.Join(dir, ReviewLogsFile)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	var logs []card.ReviewLog
	if err := yaml.Unmarshal(content, &logs); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
	}
	return logs, nil
}

func writeYAML(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
