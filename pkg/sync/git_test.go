package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
)

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	r, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	head, err := r.Head()
	if err != nil {
		return 0
	}
	iter, err := r.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	n := 0
	for {
		if _, err := iter.Next(); err != nil {
			break
		}
		n++
	}
	return n
}

func TestSyncCommitsChanges(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	g := NewGitManager(dir, false, nil)

	diary := filepath.Join(dir, "diary.txt")
	if err := os.WriteFile(diary, []byte("(2023-01-15) Sunday\n===================\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := g.Sync("ingest"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n := commitCount(t, dir); n != 1 {
		t.Fatalf("commits = %d, want 1", n)
	}

	// nothing changed
	if err := g.Sync(""); err != nil {
		t.Fatalf("clean sync: %v", err)
	}
	if n := commitCount(t, dir); n != 1 {
		t.Errorf("commits = %d after clean sync, want 1", n)
	}

	if err := os.WriteFile(diary, []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := g.Sync(""); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if n := commitCount(t, dir); n != 2 {
		t.Errorf("commits = %d, want 2", n)
	}
}

func TestSyncNotARepo(t *testing.T) {
	if err := NewGitManager(t.TempDir(), false, nil).Sync("x"); err == nil {
		t.Fatal("expected error for a directory without a repository")
	}
}
