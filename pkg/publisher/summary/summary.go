// Package summary reports the outcome of a run: the per-status pack tables
// printed at the end and the packs results file consumed by later CI steps.
package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

const (
	// ResultsFile is written next to the packs artifacts.
	ResultsFile = "packs_results.json"

	StagePrepareContent = "prepare_content_for_testing"
)

// PackResult is one row of the summary.
type PackResult struct {
	Name              string `json:"-"`
	DisplayName       string `json:"-"`
	Status            string `json:"status"`
	StatusLabel       string `json:"-"`
	Version           string `json:"latest_version,omitempty"`
	Aggregated        bool   `json:"-"`
	AggregationString string `json:"aggregated,omitempty"`
}

// Images lists the images uploaded for one pack.
type Images struct {
	Author        bool     `json:"author,omitempty"`
	Integrations  []string `json:"integrations,omitempty"`
	PreviewImages []string `json:"preview_images,omitempty"`
}

type Summary struct {
	Successful     []PackResult
	Skipped        []PackResult
	Failed         []PackResult
	UpdatedPrivate []string
	Images         map[string]Images
}

func (s Summary) Total() int {
	return len(s.Successful) + len(s.Skipped) + len(s.Failed)
}

// Build divides packs by the kind of their status.
func Build(packs []*pack.Pack, updatedPrivate []string) Summary {
	s := Summary{
		UpdatedPrivate: append([]string{}, updatedPrivate...),
		Images:         map[string]Images{},
	}
	for _, p := range packs {
		row := PackResult{
			Name:        p.Name,
			DisplayName: p.User.Name,
			Status:      p.Status.String(),
			StatusLabel: p.Status.Label(),
			Version:     p.Version,
			Aggregated:  p.Aggregated,
		}
		if p.Aggregated {
			row.AggregationString = p.AggregationString
		}
		switch p.Status.Kind() {
		case pack.KindSuccess:
			s.Successful = append(s.Successful, row)
		case pack.KindSkip:
			s.Skipped = append(s.Skipped, row)
		default:
			// a pack still pending when the run ends never reached a verdict
			s.Failed = append(s.Failed, row)
		}

		if img, ok := imagesOf(p); ok {
			s.Images[p.Name] = img
		}
	}
	for _, rows := range [][]PackResult{s.Successful, s.Skipped, s.Failed} {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	}
	sort.Strings(s.UpdatedPrivate)
	return s
}

func imagesOf(p *pack.Pack) (Images, bool) {
	var img Images
	img.Author = p.AuthorImage != nil
	for _, r := range p.IntegrationImages {
		img.Integrations = append(img.Integrations, r.Name)
	}
	for _, r := range p.PreviewImages {
		img.PreviewImages = append(img.PreviewImages, r.Name)
	}
	return img, img.Author || len(img.Integrations) > 0 || len(img.PreviewImages) > 0
}

type stageResults struct {
	SuccessfulPacks        map[string]PackResult `json:"successful_packs,omitempty"`
	FailedPacks            map[string]PackResult `json:"failed_packs,omitempty"`
	SuccessfulPrivatePacks map[string]struct{}   `json:"successful_private_packs,omitempty"`
	Images                 map[string]Images     `json:"images,omitempty"`
}

func byName(rows []PackResult) map[string]PackResult {
	if len(rows) == 0 {
		return nil
	}
	out := make(map[string]PackResult, len(rows))
	for _, r := range rows {
		out[r.Name] = r
	}
	return out
}

// WriteResults merges the summary into the results file under stage,
// keeping the entries other stages wrote.
func WriteResults(path, stage string, s Summary) error {
	doc := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return apperrors.WrapMetadata(err, "decode "+path)
		}
	}

	results := stageResults{
		SuccessfulPacks: byName(s.Successful),
		FailedPacks:     byName(s.Failed),
		Images:          s.Images,
	}
	if len(s.UpdatedPrivate) > 0 {
		results.SuccessfulPrivatePacks = make(map[string]struct{}, len(s.UpdatedPrivate))
		for _, id := range s.UpdatedPrivate {
			results.SuccessfulPrivatePacks[id] = struct{}{}
		}
	}
	if len(results.Images) == 0 {
		results.Images = nil
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return apperrors.WrapMetadata(err, "encode "+stage)
	}
	doc[stage] = encoded

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return apperrors.WrapMetadata(err, "encode "+path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.WrapStorage(err, "create "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.WrapStorage(err, "write "+path)
	}
	return nil
}
