package private

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
)

func privateTree(t *testing.T) *index.Tree {
	t.Helper()
	tree := index.NewTree()
	tree.Merge("Priced", map[string][]byte{
		"metadata.json": []byte(`{"id":"Priced","price":100,"vendorId":"v1","contentCommitHash":"h2"}`),
	}, "1.0.0", false)
	tree.Merge("Stable", map[string][]byte{
		"metadata.json": []byte(`{"id":"Stable","price":5,"contentCommitHash":"s1"}`),
	}, "", false)
	tree.SetManifest(index.Manifest{Packs: []index.PrivatePackRecord{
		{ID: "Priced", ContentCommitHash: "h2"},
		{ID: "Stable", ContentCommitHash: "s1"},
	}})
	return tree
}

func publicTree(t *testing.T) *index.Tree {
	t.Helper()
	tree := index.NewTree()
	tree.Merge("Alpha", map[string][]byte{"metadata.json": []byte("{}")}, "1.0.0", false)
	tree.SetManifest(index.Manifest{Revision: "1", Packs: []index.PrivatePackRecord{
		{ID: "Priced", ContentCommitHash: "h1"},
		{ID: "Stable", ContentCommitHash: "s1"},
	}})
	return tree
}

func TestMerge(t *testing.T) {
	public := publicTree(t)
	m := NewMerger(t.TempDir(), logr.Discard())

	result, err := m.Merge(public, privateTree(t), nil)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(result.Packs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Packs))
	}
	if result.Packs[0].Price != 100 || result.Packs[0].VendorID != "v1" {
		t.Errorf("unexpected record %+v", result.Packs[0])
	}
	if !reflect.DeepEqual(result.UpdatedIDs, []string{"Priced"}) {
		t.Errorf("expected only Priced updated, got %v", result.UpdatedIDs)
	}
	if !reflect.DeepEqual(public.Names(), []string{"Alpha", "Priced", "Stable"}) {
		t.Errorf("expected private entries merged, got %v", public.Names())
	}
	e, _ := public.Entry("Priced")
	if _, ok := e.History["1.0.0"]; !ok {
		t.Errorf("expected private history to be carried over")
	}
}

func TestMergeUsesInRunMetadata(t *testing.T) {
	extract := t.TempDir()
	if err := os.MkdirAll(filepath.Join(extract, "Priced"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(extract, "Priced", PackMetadataFile),
		[]byte(`{"name":"Priced","price":200,"contentCommitHash":"h3"}`), 0644)

	result, err := NewMerger(extract, logr.Discard()).Merge(publicTree(t), privateTree(t), map[string]struct{}{"Priced": {}})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	rec := result.Packs[0]
	if rec.ID != "Priced" || rec.Price != 200 || rec.ContentCommitHash != "h3" {
		t.Errorf("expected in-run metadata to win, got %+v", rec)
	}
}

func TestMergeNewPrivatePackIsUpdated(t *testing.T) {
	public := index.NewTree()
	public.SetManifest(index.Manifest{Revision: "1"})

	result, err := NewMerger(t.TempDir(), logr.Discard()).Merge(public, privateTree(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.UpdatedIDs) != 2 {
		t.Errorf("expected every unknown pack to count as updated, got %v", result.UpdatedIDs)
	}
}

func TestIsUpdated(t *testing.T) {
	base := index.Manifest{Packs: []index.PrivatePackRecord{{ID: "A", ContentCommitHash: "1"}}}

	tests := []struct {
		name    string
		private index.Manifest
		want    bool
	}{
		{"same", index.Manifest{Packs: []index.PrivatePackRecord{{ID: "A", ContentCommitHash: "1"}}}, false},
		{"hash changed", index.Manifest{Packs: []index.PrivatePackRecord{{ID: "A", ContentCommitHash: "2"}}}, true},
		{"pack added", index.Manifest{Packs: []index.PrivatePackRecord{{ID: "A", ContentCommitHash: "1"}, {ID: "B"}}}, true},
		{"pack replaced", index.Manifest{Packs: []index.PrivatePackRecord{{ID: "B", ContentCommitHash: "1"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUpdated(base, tt.private); got != tt.want {
				t.Errorf("IsUpdated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleEmptyPublicManifest(t *testing.T) {
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatal(err)
	}
	store := blobstore.NewBadger(db, "marketplace-dist-private", "", logr.Discard())
	loader := snapshot.NewLoader(store, t.TempDir(), logr.Discard())

	_, err = NewMerger(t.TempDir(), logr.Discard()).Handle(context.Background(), loader, "content/packs", index.NewTree(), nil)
	fatal, ok := apperrors.AsFatal(err)
	if !ok || fatal.Kind != apperrors.FatalEmptyPublicManifest {
		t.Errorf("expected FatalEmptyPublicManifest, got %v", err)
	}
}

func TestHandleLoadsPrivateIndex(t *testing.T) {
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatal(err)
	}
	store := blobstore.NewBadger(db, "marketplace-dist-private", "", logr.Discard())
	local := filepath.Join(t.TempDir(), "index.zip")
	if err := privateTree(t).WriteZip(local); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(context.Background(), "content/packs/index.zip", local); err != nil {
		t.Fatal(err)
	}

	public := publicTree(t)
	loader := snapshot.NewLoader(store, t.TempDir(), logr.Discard())
	result, err := NewMerger(t.TempDir(), logr.Discard()).Handle(context.Background(), loader, "content/packs", public, nil)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !result.Updated {
		t.Errorf("expected private content to be reported as updated")
	}
	if !public.Has("Priced") {
		t.Errorf("expected private entries in the public tree")
	}
}
