package card

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// YAMLRepository is a MemoryRepository that writes its whole state to a
// single YAML file after every change. A failed write rolls the in-memory
// state back and leaves the previous file untouched.
type YAMLRepository struct {
	*MemoryRepository
	path string
}

// OpenYAMLRepository loads path if it exists. A missing or empty file starts
// an empty store.
func OpenYAMLRepository(path string) (*YAMLRepository, error) {
	repo := &YAMLRepository{
		MemoryRepository: NewMemoryRepository(),
		path:             path,
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return repo, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	if len(content) == 0 {
		return repo, nil
	}

	var snapshot memorySnapshot
	if err := yaml.Unmarshal(content, &snapshot); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
	}
	repo.restore(snapshot)
	return repo, nil
}

// Path returns the file backing the repository.
func (r *YAMLRepository) Path() string {
	return r.path
}

// Create stores c and writes the file.
func (r *YAMLRepository) Create(_ context.Context, c *Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.snapshot()
	r.create(c)
	if err := r.persist(); err != nil {
		r.restore(before)
		c.ID = 0
		return err
	}
	return nil
}

// CreateAll stores cards and writes the file once. Nothing is kept when the
// write fails.
func (r *YAMLRepository) CreateAll(_ context.Context, cards []*Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.snapshot()
	for _, c := range cards {
		r.create(c)
	}
	if err := r.persist(); err != nil {
		r.restore(before)
		for _, c := range cards {
			c.ID = 0
		}
		return err
	}
	return nil
}

// SaveReview updates the card, appends the log and writes the file.
func (r *YAMLRepository) SaveReview(_ context.Context, c *Card, log *ReviewLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.snapshot()
	if err := r.saveReview(c, log); err != nil {
		return err
	}
	if err := r.persist(); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

// persist must be called with r.mu held.
func (r *YAMLRepository) persist() error {
	content, err := yaml.Marshal(r.snapshot())
	if err != nil {
		return fmt.Errorf("yaml.Marshal() > %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll(%s) > %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp(%s) > %w", dir, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s > %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s > %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("os.Rename(%s) > %w", r.path, err)
	}
	return nil
}
