package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
)

func newTestStore(t *testing.T, bucket string) *Badger {
	t.Helper()
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return NewBadger(db, bucket, "https://storage.example.com", logr.Discard())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestBadgerUploadAndDownload(t *testing.T) {
	store := newTestStore(t, "marketplace-dist")
	ctx := context.Background()
	dir := t.TempDir()
	src := writeFile(t, dir, "pack.zip", "zip bytes")

	blob, err := store.Upload(ctx, "content/packs/Alpha/1.0.0/Alpha.zip", src, WithCacheControl("no-cache"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if blob.Generation == 0 {
		t.Errorf("expected non-zero generation after upload")
	}
	if blob.Size != int64(len("zip bytes")) {
		t.Errorf("expected size %d, got %d", len("zip bytes"), blob.Size)
	}
	if blob.CacheControl != "no-cache" {
		t.Errorf("expected cache control no-cache, got %q", blob.CacheControl)
	}
	want := "https://storage.example.com/marketplace-dist/content/packs/Alpha/1.0.0/Alpha.zip"
	if blob.PublicURL != want {
		t.Errorf("expected public URL %s, got %s", want, blob.PublicURL)
	}

	dst := filepath.Join(dir, "out", "Alpha.zip")
	if err := store.Download(ctx, blob.Name, dst); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if string(got) != "zip bytes" {
		t.Errorf("expected downloaded content %q, got %q", "zip bytes", string(got))
	}
}

func TestBadgerStatMissing(t *testing.T) {
	store := newTestStore(t, "marketplace-dist")
	ctx := context.Background()

	_, err := store.Stat(ctx, "content/packs/index.zip")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	exists, err := store.Exists(ctx, "content/packs/index.zip")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Errorf("expected object to be absent")
	}
}

func TestBadgerConditionalUpload(t *testing.T) {
	store := newTestStore(t, "marketplace-dist")
	ctx := context.Background()
	dir := t.TempDir()
	src := writeFile(t, dir, "index.zip", "v1")

	first, err := store.Upload(ctx, "content/packs/index.zip", src, IfGenerationMatch(0))
	if err != nil {
		t.Fatalf("create-only upload failed: %v", err)
	}

	if _, err := store.Upload(ctx, "content/packs/index.zip", src, IfGenerationMatch(0)); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected precondition failure on second create, got %v", err)
	}

	src = writeFile(t, dir, "index.zip", "v2")
	second, err := store.Upload(ctx, "content/packs/index.zip", src, IfGenerationMatch(first.Generation))
	if err != nil {
		t.Fatalf("conditional upload failed: %v", err)
	}
	if second.Generation == first.Generation {
		t.Errorf("expected generation to change after overwrite")
	}

	if _, err := store.Upload(ctx, "content/packs/index.zip", src, IfGenerationMatch(first.Generation)); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected precondition failure with stale generation, got %v", err)
	}

	dst := filepath.Join(dir, "stale.zip")
	if err := store.Download(ctx, "content/packs/index.zip", dst, IfGenerationMatch(first.Generation)); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected precondition failure on stale download, got %v", err)
	}
}

func TestBadgerListAndDelete(t *testing.T) {
	store := newTestStore(t, "marketplace-dist")
	other := NewBadger(store.db, "marketplace-private", "", logr.Discard())
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "f", "x")

	for _, path := range []string{
		"content/packs/Alpha/1.0.0/Alpha.zip",
		"content/packs/Alpha/1.0.1/Alpha.zip",
		"content/packs/AlphaBeta/1.0.0/AlphaBeta.zip",
	} {
		if _, err := store.Upload(ctx, path, src); err != nil {
			t.Fatalf("upload %s failed: %v", path, err)
		}
	}
	if _, err := other.Upload(ctx, "content/packs/Alpha/1.0.0/Alpha.zip", src); err != nil {
		t.Fatalf("upload to other bucket failed: %v", err)
	}

	blobs, err := store.List(ctx, "content/packs/Alpha/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(blobs) != 2 {
		t.Fatalf("expected 2 blobs under Alpha/, got %d", len(blobs))
	}
	if blobs[0].Name != "content/packs/Alpha/1.0.0/Alpha.zip" {
		t.Errorf("expected sorted listing, got %s first", blobs[0].Name)
	}

	for _, b := range blobs {
		if err := store.Delete(ctx, b); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
	}

	remaining, err := store.List(ctx, "content/packs/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Name != "content/packs/AlphaBeta/1.0.0/AlphaBeta.zip" {
		t.Errorf("expected only AlphaBeta to remain, got %v", remaining)
	}

	exists, err := other.Exists(ctx, "content/packs/Alpha/1.0.0/Alpha.zip")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Errorf("expected other bucket to be untouched")
	}
}
