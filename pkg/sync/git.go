package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"go.uber.org/zap"
)

// GitManager commits the diary after it has been rewritten.
type GitManager struct {
	RepoPath string
	Push     bool

	log *zap.Logger
	now func() time.Time
}

// NewGitManager creates a new GitManager. A nil logger disables logging.
func NewGitManager(repoPath string, push bool, logger *zap.Logger) *GitManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitManager{RepoPath: repoPath, Push: push, log: logger.Named("git"), now: time.Now}
}

// Sync commits all changes and, when Push is set, pushes to the default
// remote. A clean worktree is not an error; nothing is committed.
func (g *GitManager) Sync(message string) error {
	r, err := git.PlainOpen(g.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := w.Add("."); err != nil {
		return fmt.Errorf("failed to add changes: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		g.log.Info("nothing to commit", zap.String("repo", g.RepoPath))
		return nil
	}

	if message == "" {
		message = fmt.Sprintf("Diary sync: %s", g.now().Format(time.RFC3339))
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Diary Pilot",
			Email: "pilot@diary.local",
			When:  g.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	g.log.Info("committed", zap.String("hash", hash.String()), zap.String("message", message))

	if !g.Push {
		return nil
	}
	return g.push(r)
}

func (g *GitManager) push(r *git.Repository) error {
	opts := &git.PushOptions{}
	home, _ := os.UserHomeDir()
	keys, err := ssh.NewPublicKeysFromFile("git", filepath.Join(home, ".ssh", "id_rsa"), "")
	if err != nil {
		g.log.Warn("could not load ssh key, pushing without explicit auth", zap.Error(err))
	} else {
		opts.Auth = keys
	}

	err = r.Push(opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}
