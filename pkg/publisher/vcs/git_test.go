package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string, when time.Time) string {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree failed: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	sig := &object.Signature{Name: "ci", Email: "ci@example.com", When: when}
	hash, err := wt.Commit("update "+name, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	return hash.String()
}

func TestGitCommitAndDiff(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	first := commitFile(t, repo, dir, "README.md", "hello", t0)
	commitFile(t, repo, dir, "Packs/Alpha/pack_metadata.json", "{}", t0.Add(time.Hour))
	last := commitFile(t, repo, dir, "Tests/conf.json", "{}", t0.Add(2*time.Hour))

	g, err := Open(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()

	c, err := g.Commit(ctx, first)
	if err != nil {
		t.Fatalf("commit lookup failed: %v", err)
	}
	if !c.CommittedAt.Equal(t0) {
		t.Errorf("expected commit time %v, got %v", t0, c.CommittedAt)
	}

	head, err := g.Commit(ctx, "HEAD")
	if err != nil {
		t.Fatalf("HEAD lookup failed: %v", err)
	}
	if head.Hash != last {
		t.Errorf("expected HEAD %s, got %s", last, head.Hash)
	}

	paths, err := g.Diff(ctx, first, last, "Packs/")
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "Packs/Alpha/pack_metadata.json" {
		t.Errorf("expected only the pack change, got %v", paths)
	}

	all, err := g.Diff(ctx, first, last)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 changed paths, got %v", all)
	}
}

func TestGitUnknownRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	commitFile(t, repo, dir, "a.txt", "a", time.Now())

	if _, err := New(repo).Commit(context.Background(), "0123456789012345678901234567890123456789"); err == nil {
		t.Errorf("expected error for unknown commit")
	}
}
