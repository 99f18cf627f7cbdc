package summary

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

func newPack(name, version string, status pack.Status) *pack.Pack {
	p := pack.New(name, "", logr.Discard())
	p.Version = version
	p.Status = status
	p.User.Name = name + " Display"
	return p
}

func samplePacks() []*pack.Pack {
	ok := newPack("Zeta", "1.0.2", pack.StatusSuccess)
	ok.Aggregated = true
	ok.AggregationString = "[1.0.1, 1.0.2] => 1.0.2"
	ok.AuthorImage = &pack.ImageRecord{Name: "Author_image.png", URL: "https://example.com/a.png"}

	return []*pack.Pack{
		ok,
		newPack("Alpha", "2.0.0", pack.StatusSuccess),
		newPack("Other", "1.0.0", pack.StatusNotRelevantForMarketplace),
		newPack("Broken", "1.0.0", pack.StatusFailedUploadingPack),
		newPack("Stuck", "1.0.0", pack.StatusMetadataFormatted),
	}
}

func TestBuild(t *testing.T) {
	s := Build(samplePacks(), []string{"PrivB", "PrivA"})

	if s.Total() != 5 {
		t.Errorf("Total() = %d, want 5", s.Total())
	}
	if len(s.Successful) != 2 || s.Successful[0].Name != "Alpha" {
		t.Errorf("successful = %+v, want Alpha first", s.Successful)
	}
	if len(s.Skipped) != 1 || s.Skipped[0].Status != "NOT_RELEVANT_FOR_MARKETPLACE" {
		t.Errorf("skipped = %+v", s.Skipped)
	}
	if len(s.Failed) != 2 {
		t.Errorf("failed = %+v, want the failed and the stuck pack", s.Failed)
	}
	if s.UpdatedPrivate[0] != "PrivA" {
		t.Errorf("updated private ids not sorted: %v", s.UpdatedPrivate)
	}
	if img, ok := s.Images["Zeta"]; !ok || !img.Author {
		t.Errorf("images = %+v, want author image for Zeta", s.Images)
	}
	if _, ok := s.Images["Alpha"]; ok {
		t.Error("pack without images listed in images data")
	}
}

func TestWriteResultsKeepsOtherStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), ResultsFile)
	if err := os.WriteFile(path, []byte(`{"upload_packs_to_marketplace_storage":{"successful_packs":{"X":{"status":"SUCCESS"}}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteResults(path, StagePrepareContent, Build(samplePacks(), []string{"PrivA"})); err != nil {
		t.Fatalf("WriteResults() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]struct {
		SuccessfulPacks map[string]struct {
			Status     string `json:"status"`
			Version    string `json:"latest_version"`
			Aggregated string `json:"aggregated"`
		} `json:"successful_packs"`
		FailedPacks            map[string]json.RawMessage `json:"failed_packs"`
		SuccessfulPrivatePacks map[string]json.RawMessage `json:"successful_private_packs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("results file is not valid JSON: %v", err)
	}
	if _, ok := doc["upload_packs_to_marketplace_storage"]; !ok {
		t.Error("results of another stage were dropped")
	}
	stage := doc[StagePrepareContent]
	if stage.SuccessfulPacks["Zeta"].Aggregated != "[1.0.1, 1.0.2] => 1.0.2" {
		t.Errorf("Zeta entry = %+v", stage.SuccessfulPacks["Zeta"])
	}
	if stage.SuccessfulPacks["Alpha"].Version != "2.0.0" {
		t.Errorf("Alpha entry = %+v", stage.SuccessfulPacks["Alpha"])
	}
	if _, ok := stage.FailedPacks["Broken"]; !ok {
		t.Error("failed pack missing from results")
	}
	if _, ok := stage.SuccessfulPrivatePacks["PrivA"]; !ok {
		t.Error("updated private pack missing from results")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build(samplePacks(), nil)); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Alpha Display", "Failed in uploading pack zip to storage", "[1.0.1, 1.0.2] => 1.0.2", "Skipped packs: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered summary missing %q", want)
		}
	}
}
