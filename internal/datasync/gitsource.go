package datasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// GitSource keeps clones of deck repositories under one directory.
type GitSource struct {
	dir      string
	progress io.Writer
}

func NewGitSource(dir string, progress io.Writer) *GitSource {
	return &GitSource{dir: dir, progress: progress}
}

// LocalPath is the directory a repository URL is cloned into.
func (s *GitSource) LocalPath(url string) string {
	name := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	name = path.Base(filepath.ToSlash(name))
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return filepath.Join(s.dir, name)
}

// Sync clones url if it doesn't exist locally, or pulls the latest changes
// if it does, and returns the local path.
func (s *GitSource) Sync(ctx context.Context, url string) (string, error) {
	localPath := s.LocalPath(url)

	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("cloning deck repository", "url", url, "path", localPath)
		if _, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      url,
			Progress: s.progress,
		}); err != nil {
			_ = os.RemoveAll(localPath)
			return "", fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
	case err == nil:
		slog.Info("pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return "", fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   s.progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return "", fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return localPath, nil
}
