package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
)

const basePath = "content/packs"

func newTestStore(t *testing.T) *blobstore.Badger {
	t.Helper()
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return blobstore.NewBadger(db, "marketplace-ci-build", "https://storage.example.com", logr.Discard())
}

// seedIndex uploads an index holding the given packs and returns its generation.
func seedIndex(t *testing.T, store blobstore.Store, packs ...string) blobstore.Generation {
	t.Helper()
	tree := index.NewTree()
	for _, name := range packs {
		md := []byte(`{"id":"` + name + `","currentVersion":"1.0.0"}`)
		if err := tree.Merge(name, map[string][]byte{index.MetadataFile: md}, "1.0.0", false); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.SetManifest(index.Manifest{Revision: "seed"}); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(t.TempDir(), snapshot.IndexArchive)
	if err := tree.WriteZip(local); err != nil {
		t.Fatal(err)
	}
	blob, err := store.Upload(context.Background(), snapshot.BlobPath(basePath), local)
	if err != nil {
		t.Fatalf("failed to seed index: %v", err)
	}
	return blob.Generation
}

func load(t *testing.T, store blobstore.Store) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.NewLoader(store, t.TempDir(), logr.Discard()).Load(context.Background(), basePath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return snap
}

func TestPublish_FirstPublish(t *testing.T) {
	store := newTestStore(t)
	snap := load(t, store)
	if snap.Generation != 0 {
		t.Fatalf("empty bucket snapshot generation = %d, want 0", snap.Generation)
	}
	if err := snap.Tree.Merge("Alpha", map[string][]byte{index.MetadataFile: []byte(`{"id":"Alpha"}`)}, "1.0.0", false); err != nil {
		t.Fatal(err)
	}

	artifacts := t.TempDir()
	p := New(store, t.TempDir(), logr.Discard())
	p.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	res, err := p.Publish(context.Background(), Request{
		Snapshot:        snap,
		BuildNumber:     "42",
		Commit:          "abc123",
		PrivatePacks:    []index.PrivatePackRecord{{ID: "Secret", Price: 10}},
		LandingSections: []string{"Featured"},
		ArtifactsDir:    artifacts,
	})
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if res.Blob.Generation == 0 {
		t.Error("published blob has no generation")
	}
	if res.Blob.CacheControl != indexCacheControl {
		t.Errorf("cache control = %q, want %q", res.Blob.CacheControl, indexCacheControl)
	}
	if res.Manifest.Modified != "2024-03-01T10:00:00Z" {
		t.Errorf("modified = %q", res.Manifest.Modified)
	}
	if snap.Tree.Len() != 0 {
		t.Error("tree not disposed after publish")
	}

	reloaded := load(t, store)
	if res.Fingerprint == "" || res.Fingerprint != reloaded.Tree.Fingerprint() {
		t.Errorf("fingerprint = %q, want the fingerprint of the published tree %q", res.Fingerprint, reloaded.Tree.Fingerprint())
	}
	if !reloaded.Tree.Has("Alpha") {
		t.Error("published index does not contain Alpha")
	}
	m, err := reloaded.Tree.Manifest()
	if err != nil {
		t.Fatal(err)
	}
	if m.Revision != "42" || m.Commit != "abc123" || len(m.Packs) != 1 || m.LandingPage.Sections[0] != "Featured" {
		t.Errorf("published manifest = %+v", m)
	}

	if _, err := os.Stat(filepath.Join(artifacts, index.ManifestFile)); err != nil {
		t.Errorf("manifest not copied to artifacts: %v", err)
	}
}

func TestPublish_GenerationGate(t *testing.T) {
	store := newTestStore(t)
	seedIndex(t, store, "Alpha")

	snap := load(t, store)
	// another publisher wins the race
	concurrent := seedIndex(t, store, "Alpha", "Beta")

	if err := snap.Tree.Merge("Gamma", map[string][]byte{index.MetadataFile: []byte(`{}`)}, "1.0.0", false); err != nil {
		t.Fatal(err)
	}
	artifacts := t.TempDir()
	p := New(store, t.TempDir(), logr.Discard())
	_, err := p.Publish(context.Background(), Request{Snapshot: snap, BuildNumber: "43", ArtifactsDir: artifacts})

	fatal, ok := apperrors.AsFatal(err)
	if !ok || fatal.Kind != apperrors.FatalGenerationMismatch {
		t.Fatalf("Publish() error = %v, want FatalGenerationMismatch", err)
	}
	if fatal.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", fatal.ExitCode())
	}

	blob, err := store.Stat(context.Background(), snapshot.BlobPath(basePath))
	if err != nil {
		t.Fatal(err)
	}
	if blob.Generation != concurrent {
		t.Errorf("remote generation = %d, want untouched %d", blob.Generation, concurrent)
	}
	remote := load(t, store)
	if remote.Tree.Has("Gamma") {
		t.Error("stale publish reached the store")
	}
	if snap.Tree.Len() != 0 {
		t.Error("tree not disposed after failed publish")
	}

	data, err := os.ReadFile(filepath.Join(artifacts, index.ManifestFile))
	if err != nil {
		t.Fatalf("manifest not copied to artifacts after a rejected publish: %v", err)
	}
	m, err := index.ParseManifest(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.Revision != "43" {
		t.Errorf("artifact manifest revision = %q, want 43", m.Revision)
	}
}

func TestPublish_ForceSkipsGate(t *testing.T) {
	store := newTestStore(t)
	seedIndex(t, store, "Alpha")
	snap := load(t, store)
	seedIndex(t, store, "Beta")

	p := New(store, t.TempDir(), logr.Discard())
	if _, err := p.Publish(context.Background(), Request{Snapshot: snap, BuildNumber: "44", Force: true}); err != nil {
		t.Fatalf("forced Publish() failed: %v", err)
	}
	remote := load(t, store)
	if !remote.Tree.Has("Alpha") || remote.Tree.Has("Beta") {
		t.Errorf("forced publish did not overwrite the index: %v", remote.Tree.Names())
	}
}

func TestBuildCorePacks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tree := index.NewTree()
	if err := tree.Merge("Base", map[string][]byte{index.MetadataFile: []byte(`{"currentVersion":"1.2.0"}`)}, "1.2.0", false); err != nil {
		t.Fatal(err)
	}
	zip := filepath.Join(t.TempDir(), "Base.zip")
	if err := os.WriteFile(zip, []byte("zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(ctx, "content/packs/Base/1.2.0/Base.zip", zip); err != nil {
		t.Fatal(err)
	}

	cp, err := BuildCorePacks(ctx, store, basePath, tree, []string{"Base"}, []string{"Base"}, "7")
	if err != nil {
		t.Fatalf("BuildCorePacks() failed: %v", err)
	}
	want := "https://storage.example.com/marketplace-ci-build/content/packs/Base/1.2.0/Base.zip"
	if len(cp.CorePacks) != 1 || cp.CorePacks[0] != want {
		t.Errorf("core packs = %v, want [%s]", cp.CorePacks, want)
	}

	_, err = BuildCorePacks(ctx, store, basePath, tree, []string{"Base", "CommonScripts"}, nil, "7")
	fatal, ok := apperrors.AsFatal(err)
	if !ok || fatal.Kind != apperrors.FatalCorePacks {
		t.Fatalf("missing core pack error = %v, want FatalCorePacks", err)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing core pack error should wrap ErrNotFound: %v", err)
	}

	artifacts := t.TempDir()
	p := New(store, t.TempDir(), logr.Discard())
	if err := p.WriteCorePacks(ctx, basePath, cp, artifacts); err != nil {
		t.Fatalf("WriteCorePacks() failed: %v", err)
	}
	if ok, _ := store.Exists(ctx, "content/packs/corepacks.json"); !ok {
		t.Error("corepacks.json not uploaded")
	}
	if _, err := os.Stat(filepath.Join(artifacts, CorePacksFile)); err != nil {
		t.Errorf("corepacks.json not copied to artifacts: %v", err)
	}
}

func TestLoadLandingSections(t *testing.T) {
	sections, err := LoadLandingSections("")
	if err != nil || len(sections) != 0 {
		t.Errorf("empty path = %v, %v", sections, err)
	}
	path := filepath.Join(t.TempDir(), "landingPage_sections.json")
	if err := os.WriteFile(path, []byte(`{"sections":["Getting Started","Featured"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	sections, err = LoadLandingSections(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 2 || sections[1] != "Featured" {
		t.Errorf("sections = %v", sections)
	}
}
