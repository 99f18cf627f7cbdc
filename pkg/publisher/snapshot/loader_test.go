package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

func newStore(t *testing.T) *blobstore.Badger {
	t.Helper()
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return blobstore.NewBadger(db, "marketplace-ci-build", "", logr.Discard())
}

func TestLoadMissingIndex(t *testing.T) {
	store := newStore(t)
	snap, err := NewLoader(store, t.TempDir(), logr.Discard()).Load(context.Background(), "content/packs")
	if err != nil {
		t.Fatalf("expected empty snapshot, got %v", err)
	}
	if snap.Generation != 0 {
		t.Errorf("expected generation 0, got %d", snap.Generation)
	}
	if snap.Tree.Len() != 0 {
		t.Errorf("expected empty tree")
	}
	if snap.BlobPath != "content/packs/index.zip" {
		t.Errorf("unexpected blob path %s", snap.BlobPath)
	}
}

func TestLoadExistingIndex(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	tree := index.NewTree()
	tree.Merge("Alpha", map[string][]byte{"metadata.json": []byte("{}")}, "1.0.0", false)
	tree.SetManifest(index.Manifest{Revision: "1", Commit: "abc"})
	local := filepath.Join(t.TempDir(), "index.zip")
	if err := tree.WriteZip(local); err != nil {
		t.Fatal(err)
	}
	blob, err := store.Upload(ctx, "content/packs/index.zip", local)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := NewLoader(store, t.TempDir(), logr.Discard()).Load(ctx, "content/packs")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap.Generation != blob.Generation {
		t.Errorf("expected generation %d, got %d", blob.Generation, snap.Generation)
	}
	if !snap.Tree.Has("Alpha") {
		t.Errorf("expected Alpha in loaded tree")
	}
	m, _ := snap.Tree.Manifest()
	if m.Commit != "abc" {
		t.Errorf("expected manifest commit abc, got %q", m.Commit)
	}
}

func TestLoadMissingIndexFolder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "index.zip")
	if err := archive.WriteFiles(local, map[string][]byte{"wrong/index.json": []byte("{}")}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(ctx, "content/packs/index.zip", local); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(store, t.TempDir(), logr.Discard()).Load(ctx, "content/packs")
	fatal, ok := apperrors.AsFatal(err)
	if !ok {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if fatal.Kind != apperrors.FatalMissingIndexFolder {
		t.Errorf("expected FatalMissingIndexFolder, got %v", fatal.Kind)
	}
}
