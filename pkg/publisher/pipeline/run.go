package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/gc"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/private"
	"github.com/garunski/marketplace-publisher/pkg/publisher/publisher"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
	"github.com/garunski/marketplace-publisher/pkg/publisher/summary"
)

// Run executes one publication. A returned error is always a
// *errors.FatalError; pack failures are reported through the Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: r.runID}
	r.startRecord()
	r.note("run", "run started")

	err := r.run(ctx, res)
	r.finishRecord(res, err)
	if err != nil {
		if _, ok := apperrors.AsFatal(err); !ok {
			err = apperrors.Fatal(apperrors.FatalIndexCheck, err)
		}
		events.StoreEventSafe(r.journal, r.logger, events.Error(r.runID, "", "run", "run stopped", err))
		return nil, err
	}
	r.note("run", "run finished")
	return res, nil
}

func (r *Runner) run(ctx context.Context, res *Result) error {
	cfg := r.cfg
	defer r.removeWorkDirs()

	basePath := cfg.IndexBasePath(cfg.BucketName)
	loader := snapshot.NewLoader(r.store, filepath.Join(cfg.ExtractPath, indexWorkDir), r.logger)
	snap, err := loader.Load(ctx, basePath)
	if err != nil {
		return err
	}
	manifest, err := snap.Tree.Manifest()
	if err != nil {
		return apperrors.Fatal(apperrors.FatalIndexDownload, err)
	}

	cm, err := r.resolveCommits(ctx, manifest)
	if err != nil {
		return err
	}

	names, err := r.selectPacks(cm.diff)
	if err != nil {
		return err
	}
	if err := r.extractArtifacts(); err != nil {
		return err
	}
	packs := r.newPacks(names)
	res.Packs = packs
	defer func() {
		for _, p := range packs {
			p.Cleanup()
		}
	}()

	res.Private, err = r.mergePrivate(ctx, snap.Tree, names)
	if err != nil {
		return err
	}

	if !cfg.OverrideAllPacks {
		if err := r.checkFreshness(cm, manifest, res.Private.Updated); err != nil {
			return err
		}
	}

	res.GC = r.collectGarbage(ctx, snap.Tree, basePath, res.Private)

	mapping, err := deps.LoadMapping(cfg.PackDependenciesPath)
	if err != nil {
		return apperrors.Fatal(apperrors.FatalArtifacts, err)
	}
	relevant := r.loadPacks(packs)
	rs := &runState{
		snap:        snap,
		tree:        snap.Tree,
		commits:     cm,
		graph:       buildGraph(mapping, relevant),
		mapping:     mapping,
		basePath:    cfg.StorageBasePath,
		uploadedDir: filepath.Join(r.artifactsDir(), uploadedPacksDir),
	}

	r.firstPass(ctx, rs, relevant)
	r.resolveMissingDependencies(rs, relevant)

	pub := publisher.New(r.store, filepath.Join(cfg.ExtractPath, indexWorkDir), r.logger)
	cp, err := publisher.BuildCorePacks(ctx, r.store, cfg.StorageBasePath, snap.Tree,
		cfg.RequiredCorePacks(), cfg.CorePacksToUpgrade(), cfg.BuildNumber)
	if err != nil {
		return err
	}
	if err := pub.WriteCorePacks(ctx, basePath, cp, r.artifactsDir()); err != nil {
		return err
	}

	commit := cm.current.Hash
	if cfg.ForceUpload {
		commit = cm.previous.Hash
	}
	res.Published, err = pub.Publish(ctx, publisher.Request{
		Snapshot:        snap,
		BuildNumber:     cfg.BuildNumber,
		Commit:          commit,
		PrivatePacks:    res.Private.Packs,
		LandingSections: r.landingSections(manifest),
		Private:         cfg.IsPrivateRun(),
		Force:           cfg.ForceUpload,
		ArtifactsDir:    r.artifactsDir(),
	})
	if err != nil {
		return err
	}
	r.note("publish", "index published")

	r.uploadDependenciesZips(ctx, rs, relevant)

	res.Summary = summary.Build(packs, res.Private.UpdatedIDs)
	resultsPath := filepath.Join(r.artifactsDir(), summary.ResultsFile)
	if err := summary.WriteResults(resultsPath, summary.StagePrepareContent, res.Summary); err != nil {
		r.logger.Error(err, "failed to write packs results", "path", resultsPath)
	}
	return nil
}

// mergePrivate folds the private index into the public tree. Failures other
// than fatal ones are logged and the run continues without private packs.
func (r *Runner) mergePrivate(ctx context.Context, public *index.Tree, names []string) (private.Result, error) {
	if r.privateStore == nil || r.cfg.PrivateBucketName == "" {
		r.logger.V(1).Info("no private bucket configured, skipping private packs")
		return private.Result{}, nil
	}
	inRun := make(map[string]struct{}, len(names))
	for _, n := range names {
		inRun[n] = struct{}{}
	}
	loader := snapshot.NewLoader(r.privateStore, filepath.Join(r.cfg.ExtractPath, privateIndexWorkDir), r.logger)
	merger := private.NewMerger(r.cfg.ExtractPath, r.logger)
	result, err := merger.Handle(ctx, loader, r.cfg.IndexBasePath(r.cfg.PrivateBucketName), public, inRun)
	if err != nil {
		if _, ok := apperrors.AsFatal(err); ok && !errors.Is(err, apperrors.ErrPrivatePack) {
			return private.Result{}, err
		}
		r.logger.Error(err, "failed to merge private packs, continuing without them")
		events.StoreEventSafe(r.journal, r.logger, events.Warning(r.runID, "", "private-merge", "private packs were not merged"))
		return private.Result{}, nil
	}
	return result, nil
}

// collectGarbage never fails the run; a failed cleanup only leaves stale
// packs behind.
func (r *Runner) collectGarbage(ctx context.Context, tree *index.Tree, basePath string, priv private.Result) gc.Report {
	local, err := r.localPacks()
	if err != nil {
		r.logger.Error(err, "cannot list local packs, skipping cleanup of the index")
		return gc.Report{Skipped: true}
	}
	collector := gc.NewCollector(r.store, basePath, r.logger)
	report, err := collector.Run(ctx, r.rc, r.cfg, tree, gc.ValidSet(local, priv.Packs, r.cfg.Marketplace))
	if err != nil {
		r.logger.Error(err, "failed to clean up invalid packs, continuing", "removed", report.Removed)
		e := events.Warning(r.runID, "", "gc", "cleanup of invalid packs stopped early").
			WithDetail("error", err.Error()).
			WithDetail("packs", report.Removed)
		events.StoreEventSafe(r.journal, r.logger, e)
		return report
	}
	if len(report.Removed) > 0 {
		e := events.Warning(r.runID, "", "gc", "removed packs from the index").
			WithDetail("packs", report.Removed).
			WithDetail("blobs", report.DeletedBlobs)
		events.StoreEventSafe(r.journal, r.logger, e)
	}
	return report
}

func (r *Runner) landingSections(manifest index.Manifest) []string {
	if r.cfg.LandingPagePath == "" {
		return manifest.LandingPage.Sections
	}
	sections, err := publisher.LoadLandingSections(r.cfg.LandingPagePath)
	if err != nil {
		r.logger.Error(err, "failed to load landing page sections, keeping the published ones")
		return manifest.LandingPage.Sections
	}
	return sections
}
