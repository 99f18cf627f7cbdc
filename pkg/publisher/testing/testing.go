package testing

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
)

// NewTestLogger creates a test logger
func NewTestLogger() logr.Logger {
	zapLog, _ := zap.NewDevelopment()
	return zapr.NewLogger(zapLog)
}

// NewTestDB creates a test database
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return db
}

// NewTestBlobStore creates an in-memory bucket
func NewTestBlobStore(t *testing.T, bucket string) *blobstore.Badger {
	return blobstore.NewBadger(NewTestDB(t), bucket, "https://storage.example.com", logr.Discard())
}

// NewTestJournal creates a test run journal
func NewTestJournal(t *testing.T) *events.Storage {
	return events.NewStorage(NewTestDB(t), logr.Discard())
}

// NewTestRuns creates a test run store
func NewTestRuns(t *testing.T) *store.Runs {
	t.Helper()
	runs, err := store.NewRuns(NewTestDB(t), logr.Discard())
	if err != nil {
		t.Fatalf("failed to create run store: %v", err)
	}
	return runs
}

// PackFixture describes a pack folder of the artifacts bundle.
type PackFixture struct {
	// Metadata is written as pack_metadata.json
	Metadata map[string]interface{}
	// Files maps slash separated paths inside the pack to their content
	Files map[string]string
}

func (f PackFixture) files(t *testing.T) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte, len(f.Files)+1)
	if f.Metadata != nil {
		data, err := json.Marshal(f.Metadata)
		if err != nil {
			t.Fatalf("failed to encode pack metadata: %v", err)
		}
		out["pack_metadata.json"] = data
	}
	for name, content := range f.Files {
		out[name] = []byte(content)
	}
	return out
}

// WritePackDir writes a pack folder under root and returns its path.
func WritePackDir(t *testing.T, root, name string, f PackFixture) string {
	t.Helper()
	dir := filepath.Join(root, name)
	for rel, data := range f.files(t) {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", full, err)
		}
	}
	return dir
}

// WriteBundle zips the packs into an artifacts bundle at dst.
func WriteBundle(t *testing.T, dst string, packs map[string]PackFixture) {
	t.Helper()
	files := make(map[string][]byte)
	for name, f := range packs {
		for rel, data := range f.files(t) {
			files[path.Join(name, rel)] = data
		}
	}
	if err := archive.WriteFiles(dst, files); err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}
}

// ContentRepo is a throwaway git repository laid out like the content repo.
type ContentRepo struct {
	Dir  string
	Repo *git.Repository
}

// NewContentRepo initialises an empty repository in a temp dir.
func NewContentRepo(t *testing.T) *ContentRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("git init failed: %v", err)
	}
	return &ContentRepo{Dir: dir, Repo: repo}
}

// Commit writes files and commits them at when, returning the hash.
func (c *ContentRepo) Commit(t *testing.T, when time.Time, files map[string]string) string {
	t.Helper()
	wt, err := c.Repo.Worktree()
	if err != nil {
		t.Fatalf("worktree failed: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(c.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add %s failed: %v", name, err)
		}
	}
	sig := &object.Signature{Name: "ci", Email: "ci@example.com", When: when}
	hash, err := wt.Commit("update packs", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	return hash.String()
}
