// Package testutil provides shared test helpers for creating config files and deck fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/studydeck/internal/card"
)

type testConfig struct {
	driver    string
	serverURL string
}

// ConfigOption configures the generated config file.
type ConfigOption func(*testConfig)

// WithSQLite stores cards in a SQLite database instead of a YAML file.
func WithSQLite() ConfigOption {
	return func(c *testConfig) {
		c.driver = "sqlite"
	}
}

// WithServerURL points the API client at url.
func WithServerURL(url string) ConfigOption {
	return func(c *testConfig) {
		c.serverURL = url
	}
}

// SetupTestConfig creates a config file and the directories it refers to,
// all under tmpDir. Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string, opts ...ConfigOption) string {
	t.Helper()

	cfg := testConfig{
		driver:    "yaml",
		serverURL: "http://127.0.0.1:8080",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	decksDir := filepath.Join(tmpDir, "decks")
	require.NoError(t, os.MkdirAll(decksDir, 0o755))

	configContent := fmt.Sprintf(`storage:
  driver: %s
  yaml_file: %s
  sqlite_file: %s
client:
  base_url: %s
  retry_attempts: 0
  timeout_seconds: 5
decks:
  repositories_directory: %s
`,
		cfg.driver,
		filepath.Join(tmpDir, "study_data.yml"),
		filepath.Join(tmpDir, "studydeck.db"),
		cfg.serverURL,
		decksDir,
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0o644))
	return cfgPath
}

// CreateDeck writes a deck file named name.yml into dir.
func CreateDeck(t *testing.T, dir, name, course string, cards ...card.Card) string {
	t.Helper()

	type deckCard struct {
		Type          string   `yaml:"type,omitempty"`
		Question      string   `yaml:"question"`
		Answer        string   `yaml:"answer,omitempty"`
		Options       []string `yaml:"options,omitempty"`
		CorrectAnswer string   `yaml:"correct_answer,omitempty"`
		Course        string   `yaml:"course,omitempty"`
	}
	deck := struct {
		Course string     `yaml:"course,omitempty"`
		Cards  []deckCard `yaml:"cards"`
	}{Course: course}
	for _, c := range cards {
		deck.Cards = append(deck.Cards, deckCard{
			Type:          string(c.Type),
			Question:      c.Question,
			Answer:        c.Answer,
			Options:       c.Options,
			CorrectAnswer: c.CorrectAnswer,
			Course:        c.Course,
		})
	}

	content, err := yaml.Marshal(deck)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".yml")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}
