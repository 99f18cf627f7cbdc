package private

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
)

// PackMetadataFile is the metadata file of a pack in the artifact bundle.
const PackMetadataFile = "pack_metadata.json"

// Result is what the public index learns from the private index.
type Result struct {
	// Updated is true when the private index differs from the private
	// records of the public manifest
	Updated bool

	// Packs are the records to embed in the public manifest
	Packs []index.PrivatePackRecord

	// UpdatedIDs are the packs whose content commit hash changed
	UpdatedIDs []string
}

// Merger folds the private (priced) index into the public one.
type Merger struct {
	extractPath string
	logger      logr.Logger
}

func NewMerger(extractPath string, logger logr.Logger) *Merger {
	return &Merger{
		extractPath: extractPath,
		logger:      logger.WithName("private"),
	}
}

// Handle loads the private index through loader and merges it into public.
// A public index without a manifest is fatal; any other failure is returned
// as an ErrPrivatePack error for the caller to report.
func (m *Merger) Handle(ctx context.Context, loader *snapshot.Loader, basePath string, public *index.Tree, inRun map[string]struct{}) (Result, error) {
	publicManifest, err := public.Manifest()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrPrivatePack, err)
	}
	if publicManifest.IsEmpty() {
		return Result{}, apperrors.Fatal(apperrors.FatalEmptyPublicManifest, fmt.Errorf("public %s was found empty", index.ManifestFile))
	}

	snap, err := loader.Load(ctx, basePath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: load private index: %w", apperrors.ErrPrivatePack, err)
	}

	privateManifest, err := snap.Tree.Manifest()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrPrivatePack, err)
	}
	updated := IsUpdated(publicManifest, privateManifest)

	result, err := m.Merge(public, snap.Tree, inRun)
	if err != nil {
		return Result{}, err
	}
	result.Updated = updated
	return result, nil
}

// Merge collects the private records, compares them with the public
// manifest and copies every private entry into public. It runs even when
// nothing changed so the public manifest always carries the latest records.
func (m *Merger) Merge(public, private *index.Tree, inRun map[string]struct{}) (Result, error) {
	publicManifest, err := public.Manifest()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrPrivatePack, err)
	}

	records, err := m.records(private, inRun)
	if err != nil {
		return Result{}, err
	}

	var updated []string
	for _, r := range records {
		published, _ := publicManifest.PackRecord(r.ID)
		if published.ContentCommitHash != r.ContentCommitHash || published.ID == "" {
			updated = append(updated, r.ID)
		}
	}
	m.logger.V(1).Info("updated private packs", "ids", updated)

	for _, name := range private.Names() {
		e, _ := private.Entry(name)
		if err := public.Merge(name, e.AllFiles(), "", false); err != nil {
			return Result{}, fmt.Errorf("%w: merge %s: %w", apperrors.ErrPrivatePack, name, err)
		}
	}

	m.logger.Info("finished updating index with priced packs", "packs", len(records))
	return Result{Packs: records, UpdatedIDs: updated}, nil
}

func (m *Merger) records(private *index.Tree, inRun map[string]struct{}) ([]index.PrivatePackRecord, error) {
	var records []index.PrivatePackRecord
	for _, name := range private.Names() {
		data, ok := private.File(name, index.MetadataFile)
		if !ok {
			continue
		}
		md, err := decodeMetadata(data)
		if err != nil {
			m.logger.Error(err, "invalid JSON in private metadata file", "pack", name)
			continue
		}

		id := md.ID
		if _, changed := inRun[id]; changed {
			path := filepath.Join(m.extractPath, id, PackMetadataFile)
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %w", apperrors.ErrPrivatePack, path, err)
			}
			if md, err = decodeMetadata(raw); err != nil {
				return nil, fmt.Errorf("%w: decode %s: %w", apperrors.ErrPrivatePack, path, err)
			}
			id = md.Name
		}
		if md.isEmpty() {
			continue
		}

		records = append(records, index.PrivatePackRecord{
			ID:                id,
			Price:             md.Price,
			VendorID:          md.VendorID,
			PartnerID:         md.PartnerID,
			PartnerName:       md.PartnerName,
			DisableMonthly:    md.DisableMonthly,
			ContentCommitHash: md.ContentCommitHash,
		})
	}
	return records, nil
}

// IsUpdated reports whether the private packs changed since the public
// manifest was written: a pack was added or removed, or a content commit
// hash differs.
func IsUpdated(public, private index.Manifest) bool {
	if len(public.Packs) != len(private.Packs) {
		return true
	}
	hashes := make(map[string]string, len(public.Packs))
	for _, r := range public.Packs {
		hashes[r.ID] = r.ContentCommitHash
	}
	for _, r := range private.Packs {
		hash, ok := hashes[r.ID]
		if !ok || hash != r.ContentCommitHash {
			return true
		}
	}
	return false
}

type metadata struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Price             int    `json:"price"`
	VendorID          string `json:"vendorId"`
	PartnerID         string `json:"partnerId"`
	PartnerName       string `json:"partnerName"`
	DisableMonthly    bool   `json:"disableMonthly"`
	ContentCommitHash string `json:"contentCommitHash"`
}

func (md metadata) isEmpty() bool {
	return md == metadata{}
}

func decodeMetadata(data []byte) (metadata, error) {
	var md metadata
	err := json.Unmarshal(data, &md)
	return md, err
}
