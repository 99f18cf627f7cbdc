package pipeline

import (
	"context"
	"sync"

	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

// loadPacks reads the user metadata of every pack and keeps the ones that
// target the configured marketplace.
func (r *Runner) loadPacks(packs []*pack.Pack) []*pack.Pack {
	relevant := make([]*pack.Pack, 0, len(packs))
	for _, p := range packs {
		if err := p.LoadMetadata(); err != nil {
			p.Fail(pack.StatusFailedLoadingUserMetadata, err)
			r.record(p, "load-metadata", err)
			continue
		}
		p.Status = pack.StatusMetadataLoaded
		r.record(p, "load-metadata", nil)

		if !p.IsRelevantFor(r.cfg.Marketplace) {
			p.Logger().Info("skipping pack, not supported in the current marketplace", "marketplace", r.cfg.Marketplace)
			p.Status = pack.StatusNotRelevantForMarketplace
			r.record(p, "filter-marketplace", nil)
			p.Cleanup()
			continue
		}
		p.Status = pack.StatusMarketplaceFiltered
		r.record(p, "filter-marketplace", nil)
		relevant = append(relevant, p)
	}
	return relevant
}

// buildGraph merges the dependencies file with what each pack declares.
func buildGraph(mapping deps.Mapping, packs []*pack.Pack) *deps.Graph {
	g := deps.FromMapping(mapping)
	for _, p := range packs {
		for name, d := range p.User.Dependencies {
			g.AddEdge(p.Name, name, d.Mandatory)
		}
	}
	return g
}

// firstPass runs every pack through its state machine on a bounded pool
// and returns once all of them reached a terminal status.
func (r *Runner) firstPass(ctx context.Context, rs *runState, packs []*pack.Pack) {
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, p := range packs {
		wg.Add(1)
		go func(p *pack.Pack) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			r.processPack(ctx, rs, p)
		}(p)
	}

	wg.Wait()
}

// processPack takes one pack from MARKETPLACE_FILTERED to a terminal status.
// A failing stage ends the pack with that stage's failure status.
func (r *Runner) processPack(ctx context.Context, rs *runState, p *pack.Pack) {
	fail := func(status pack.Status, operation string, err error) {
		p.Fail(status, err)
		r.record(p, operation, err)
	}
	advance := func(status pack.Status, operation string) {
		p.Status = status
		r.record(p, operation, nil)
	}

	if err := ctx.Err(); err != nil {
		fail(pack.StatusFailedCollectItems, "collect-content", err)
		return
	}

	if err := p.CollectContentItems(); err != nil {
		fail(pack.StatusFailedCollectItems, "collect-content", err)
		return
	}
	advance(pack.StatusContentCollected, "collect-content")

	if err := p.UploadImages(ctx, r.store, rs.basePath, r.cfg.PacksFolder, rs.commits.diff, r.cfg.OverrideAllPacks); err != nil {
		fail(pack.StatusFailedImagesUpload, "upload-images", err)
		return
	}
	advance(pack.StatusImagesUploaded, "upload-images")

	if err := p.DetectModified(rs.tree, r.cfg.PacksFolder, rs.commits.diff); err != nil {
		fail(pack.StatusFailedDetectingModifiedFiles, "detect-modified", err)
		return
	}
	advance(pack.StatusModifiedDetected, "detect-modified")

	if err := p.FormatMetadata(r.formatOptions(rs), false); err != nil {
		fail(pack.StatusFailedMetadataParsing, "format-metadata", err)
		return
	}
	advance(pack.StatusMetadataFormatted, "format-metadata")

	notUpdated, err := p.PrepareReleaseNotes(rs.tree, r.cfg.BuildNumber, r.now())
	if err != nil {
		fail(pack.StatusFailedReleaseNotes, "release-notes", err)
		return
	}
	if notUpdated && r.cfg.BucketUpload {
		advance(pack.StatusNotUpdatedInRunningBuild, "release-notes")
		return
	}
	advance(pack.StatusReleaseNotesPrepared, "release-notes")

	if err := p.RemoveUnwantedFiles(r.cfg.RemoveTestPlaybooks); err != nil {
		fail(pack.StatusFailedRemovingSkippedFolders, "remove-unwanted", err)
		return
	}
	if err := p.Sign(r.signer); err != nil {
		fail(pack.StatusFailedSigningPacks, "sign", err)
		return
	}
	if err := p.Zip(); err != nil {
		fail(pack.StatusFailedZippingPackArtifacts, "zip", err)
		return
	}
	if rs.uploadedDir != "" {
		if err := p.CopyArtifact(rs.uploadedDir); err != nil {
			fail(pack.StatusFailedZippingPackArtifacts, "zip", err)
			return
		}
	}
	advance(pack.StatusSignedZipped, "zip")

	skipped, err := p.Upload(ctx, r.store, rs.basePath, r.cfg.OverrideAllPacks || p.Modified)
	if err != nil {
		fail(pack.StatusFailedUploadingPack, "upload", err)
		return
	}
	advance(pack.StatusUploaded, "upload")

	if err := p.UploadPreviewImages(ctx, r.store, rs.basePath, r.cfg.PacksFolder, rs.commits.diff); err != nil {
		fail(pack.StatusFailedPreviewImagesUpload, "upload-preview-images", err)
		return
	}

	exists, err := p.ExistsInIndex(rs.tree)
	if err != nil {
		fail(pack.StatusFailedSearchingPackInIndex, "search-index", err)
		return
	}

	if err := p.PrepareForIndexUpload(); err != nil {
		fail(pack.StatusFailedPreparingIndexFolder, "prepare-index", err)
		return
	}

	if err := rs.tree.MergePack(p.Name, p.Path, p.Version, p.Hidden); err != nil {
		fail(pack.StatusFailedUpdatingIndexFolder, "merge-index", err)
		return
	}
	advance(pack.StatusIndexMerged, "merge-index")

	// nothing changed for clients when the version was already stored and
	// indexed, unless the entry still needs its dependencies resolved
	if skipped && exists && !p.MissingDependencies {
		advance(pack.StatusPackAlreadyExists, "complete")
		return
	}
	advance(pack.StatusSuccess, "complete")
}
