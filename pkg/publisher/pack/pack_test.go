package pack

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newPack(t *testing.T, name string, files map[string]string) *Pack {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	writeFiles(t, dir, files)
	return New(name, dir, logr.Discard())
}

func TestLoadMetadata(t *testing.T) {
	p := newPack(t, "Alpha", map[string]string{
		UserMetadataFile: `{"name":"Alpha","currentVersion":"1.2.0","dependencies":{"Base":{"mandatory":true}}}`,
	})
	if err := p.LoadMetadata(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if p.Version != "1.2.0" {
		t.Errorf("expected version 1.2.0, got %s", p.Version)
	}
	if !reflect.DeepEqual(p.Marketplaces, DefaultMarketplaces) {
		t.Errorf("expected default marketplaces, got %v", p.Marketplaces)
	}
	if !p.IsRelevantFor("xsoar") || p.IsRelevantFor("other") {
		t.Errorf("unexpected marketplace relevance for %v", p.Marketplaces)
	}
	if !reflect.DeepEqual(p.Dependencies, []string{"Base"}) {
		t.Errorf("expected Base dependency, got %v", p.Dependencies)
	}
}

func TestLoadMetadataInvalid(t *testing.T) {
	tests := map[string]string{
		"bad json":    `{`,
		"bad version": `{"name":"Alpha","currentVersion":"one"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			p := newPack(t, "Alpha", map[string]string{UserMetadataFile: content})
			if err := p.LoadMetadata(); err == nil {
				t.Errorf("expected error")
			}
		})
	}

	missing := New("Ghost", filepath.Join(t.TempDir(), "Ghost"), logr.Discard())
	if err := missing.LoadMetadata(); err == nil {
		t.Errorf("expected error for missing metadata")
	}
}

func TestCollectContentItems(t *testing.T) {
	p := newPack(t, "Alpha", map[string]string{
		"Integrations/AlphaIntegration/AlphaIntegration.yml": "commonfields:\n  id: alpha\nname: Alpha\ndisplay: Alpha Integration\ndescription: talks to alpha\n",
		"Scripts/Helper/Helper.yml":                          "commonfields:\n  id: helper\nname: Helper\n",
		"IncidentFields/field.json":                          `{"id":"incident_alpha","name":"Alpha Field"}`,
		"Integrations/AlphaIntegration/README.md":            "ignored",
	})
	if err := p.CollectContentItems(); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	integrations := p.ContentItems["integration"]
	if len(integrations) != 1 || integrations[0].ID != "alpha" || integrations[0].Name != "Alpha Integration" {
		t.Errorf("unexpected integrations %+v", integrations)
	}
	if len(p.ContentItems["automation"]) != 1 {
		t.Errorf("expected one script, got %+v", p.ContentItems["automation"])
	}
	if len(p.ContentItems["incidentfield"]) != 1 {
		t.Errorf("expected json entity to be collected, got %+v", p.ContentItems)
	}

	broken := newPack(t, "Broken", map[string]string{"Scripts/x.yml": "name: [unclosed"})
	if err := broken.CollectContentItems(); err == nil {
		t.Errorf("expected parse error")
	}
}

func TestFormatMetadataMissingDependencies(t *testing.T) {
	tree := index.NewTree()
	p := newPack(t, "A", map[string]string{
		UserMetadataFile: `{"name":"A","currentVersion":"1.0.0","dependencies":{"B":{"mandatory":true}}}`,
	})
	if err := p.LoadMetadata(); err != nil {
		t.Fatal(err)
	}
	graph := deps.New()
	graph.AddEdge("A", "B", true)
	opts := FormatOptions{Tree: tree, Graph: graph, BuildNumber: "42", Commit: "abc", Now: time.Now()}

	if err := p.FormatMetadata(opts, false); err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !p.MissingDependencies {
		t.Errorf("expected pack to be flagged with missing dependencies")
	}
	md := readMetadata(t, p)
	if md.Dependencies["B"].Name != "" {
		t.Errorf("expected no details for missing dependency, got %+v", md.Dependencies["B"])
	}
	if md.VersionInfo != "42" || md.Commit != "abc" {
		t.Errorf("unexpected build fields %+v", md)
	}

	tree.Merge("B", map[string][]byte{MetadataFile: []byte(`{"name":"Beta","author":"Cortex","currentVersion":"2.0.0"}`)}, "2.0.0", false)
	if err := p.FormatMetadata(opts, true); err != nil {
		t.Fatalf("reformat failed: %v", err)
	}
	if p.MissingDependencies {
		t.Errorf("expected flag to clear once the dependency is indexed")
	}
	md = readMetadata(t, p)
	b := md.Dependencies["B"]
	if b.Name != "Beta" || b.Author != "Cortex" || b.MinVersion != "2.0.0" || !b.Mandatory {
		t.Errorf("expected dependency details from the index, got %+v", b)
	}
	if md.VersionInfo != "42" {
		t.Errorf("expected dependencies-only pass to keep other fields, got %+v", md)
	}
}

func readMetadata(t *testing.T, p *Pack) Metadata {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.Path, MetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		t.Fatal(err)
	}
	return md
}

func TestDetectModified(t *testing.T) {
	tree := index.NewTree()
	p := newPack(t, "Alpha", nil)
	if err := p.DetectModified(tree, "Packs", nil); err != nil {
		t.Fatal(err)
	}
	if !p.Modified {
		t.Errorf("expected a pack missing from the index to be modified")
	}

	tree.Merge("Alpha", map[string][]byte{MetadataFile: []byte(`{"currentVersion":"1.0.0"}`)}, "1.0.0", false)
	if err := p.DetectModified(tree, "Packs", []string{"Packs/AlphaBeta/x.yml"}); err != nil {
		t.Fatal(err)
	}
	if p.Modified {
		t.Errorf("expected a change in another pack to be ignored")
	}
	if p.PublishedVersion != "1.0.0" {
		t.Errorf("expected published version 1.0.0, got %s", p.PublishedVersion)
	}

	diff := []string{"Packs/Alpha/ReleaseNotes/1_0_1.md", "Packs/Alpha/Scripts/x.yml"}
	if err := p.DetectModified(tree, "Packs", diff); err != nil {
		t.Fatal(err)
	}
	if !p.Modified || !reflect.DeepEqual(p.ModifiedReleaseNotes, diff[:1]) {
		t.Errorf("expected modified with one release note, got %v %v", p.Modified, p.ModifiedReleaseNotes)
	}
}

func TestPrepareReleaseNotesAggregation(t *testing.T) {
	tree := index.NewTree()
	tree.Merge("Alpha", map[string][]byte{
		ChangelogFile: []byte(`{"1.0.0":{"releaseNotes":"Initial release","displayName":"1.0.0 - 1","released":"x"}}`),
	}, "", false)

	p := newPack(t, "Alpha", map[string]string{
		"ReleaseNotes/1_0_1.md": "fix one",
		"ReleaseNotes/1_0_2.md": "fix two",
	})
	p.Version = "1.0.2"

	notUpdated, err := p.PrepareReleaseNotes(tree, "77", time.Now())
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if notUpdated {
		t.Fatal("expected pack to be updated")
	}
	if !p.Aggregated || p.AggregationString != "[1.0.1, 1.0.2] => 1.0.2" {
		t.Errorf("unexpected aggregation %v %q", p.Aggregated, p.AggregationString)
	}

	data, err := os.ReadFile(filepath.Join(p.Path, ChangelogFile))
	if err != nil {
		t.Fatal(err)
	}
	var changelog Changelog
	if err := json.Unmarshal(data, &changelog); err != nil {
		t.Fatal(err)
	}
	if len(changelog) != 2 {
		t.Errorf("expected 2 changelog entries, got %v", changelog)
	}
	if changelog["1.0.2"].ReleaseNotes != "fix one\nfix two" {
		t.Errorf("unexpected aggregated notes %q", changelog["1.0.2"].ReleaseNotes)
	}
}

func TestPrepareReleaseNotesNotUpdatedBuild(t *testing.T) {
	tree := index.NewTree()
	tree.Merge("Alpha", map[string][]byte{
		ChangelogFile: []byte(`{"1.1.0":{"releaseNotes":"newer"}}`),
	}, "", false)
	p := newPack(t, "Alpha", nil)
	p.Version = "1.0.0"

	notUpdated, err := p.PrepareReleaseNotes(tree, "1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !notUpdated {
		t.Errorf("expected the build to be reported as not updated")
	}
}

func TestSignAndZip(t *testing.T) {
	p := newPack(t, "Alpha", map[string]string{
		UserMetadataFile:         `{}`,
		"TestPlaybooks/test.yml": "id: t",
		"Playbooks/playbook.yml": "id: p",
	})
	signer, err := NewSigner("c2VjcmV0")
	if err != nil {
		t.Fatal(err)
	}

	if err := p.RemoveUnwantedFiles(true); err != nil {
		t.Fatal(err)
	}
	if err := p.Sign(signer); err != nil {
		t.Fatal(err)
	}
	if err := p.Zip(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(p.Path, TestPlaybooksDir)); !os.IsNotExist(err) {
		t.Errorf("expected test playbooks to be removed")
	}
	sig, err := os.ReadFile(filepath.Join(p.Path, SignatureFile))
	if err != nil {
		t.Fatalf("expected signature file: %v", err)
	}
	digest, _ := signer.(*DigestSigner).Digest(p.Path)
	if string(sig) != digest {
		t.Errorf("expected signature to match digest")
	}
	if p.ArtifactPath != p.ZipPath() {
		t.Errorf("expected artifact path to be set")
	}

	if _, err := NewSigner("%%%"); err == nil {
		t.Errorf("expected error for invalid key")
	}
	if s, _ := NewSigner(""); s != (NopSigner{}) {
		t.Errorf("expected NopSigner for empty key")
	}
}

func TestUploadSkipsExistingVersion(t *testing.T) {
	db, err := database.NewTestDB(t)
	if err != nil {
		t.Fatal(err)
	}
	store := blobstore.NewBadger(db, "marketplace-ci-build", "https://example.com", logr.Discard())
	ctx := context.Background()

	p := newPack(t, "Alpha", map[string]string{MetadataFile: "{}"})
	p.Version = "1.0.0"
	if err := p.Zip(); err != nil {
		t.Fatal(err)
	}

	skipped, err := p.Upload(ctx, store, "content/packs", false)
	if err != nil || skipped {
		t.Fatalf("expected first upload, got skipped=%v err=%v", skipped, err)
	}
	if p.PublicURL != "https://example.com/marketplace-ci-build/content/packs/Alpha/1.0.0/Alpha.zip" {
		t.Errorf("unexpected public URL %s", p.PublicURL)
	}

	skipped, err = p.Upload(ctx, store, "content/packs", false)
	if err != nil || !skipped {
		t.Errorf("expected second upload to be skipped, got skipped=%v err=%v", skipped, err)
	}
	skipped, err = p.Upload(ctx, store, "content/packs", true)
	if err != nil || skipped {
		t.Errorf("expected override to upload, got skipped=%v err=%v", skipped, err)
	}
}

func TestPrepareForIndexUpload(t *testing.T) {
	p := newPack(t, "Alpha", map[string]string{
		MetadataFile:         "{}",
		ChangelogFile:        "{}",
		ReadmeFile:           "# Alpha",
		UserMetadataFile:     "{}",
		"Scripts/Helper.yml": "id: h",
	})
	if err := p.PrepareForIndexUpload(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !reflect.DeepEqual(names, []string{ReadmeFile, ChangelogFile, MetadataFile}) {
		t.Errorf("unexpected files after prepare: %v", names)
	}
}

func TestCleanup(t *testing.T) {
	p := newPack(t, "Alpha", map[string]string{MetadataFile: "{}"})
	if err := p.Zip(); err != nil {
		t.Fatal(err)
	}
	p.Fail(StatusFailedUploadingPack, os.ErrPermission)

	if p.Status != StatusFailedUploadingPack {
		t.Errorf("expected failure status, got %v", p.Status)
	}
	if _, err := os.Stat(p.Path); !os.IsNotExist(err) {
		t.Errorf("expected working directory removed")
	}
	if _, err := os.Stat(p.ArtifactPath); !os.IsNotExist(err) {
		t.Errorf("expected artifact removed")
	}
}
