package pipeline

import (
	"context"
	"fmt"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/vcs"
)

// commits is the version control view of a run.
type commits struct {
	current  vcs.Commit
	previous vcs.Commit
	// indexed is the commit recorded in the published manifest, nil when
	// the manifest has none or it cannot be resolved
	indexed  *vcs.Commit
	indexErr error
	// diff lists the pack files changed between previous and current
	diff []string
}

// resolveCommits finds the commit being published and the one it is
// compared against: the commit of the published index when it is known,
// otherwise the parent of the current commit.
func (r *Runner) resolveCommits(ctx context.Context, manifest index.Manifest) (commits, error) {
	var cm commits
	if r.repo == nil {
		cm.current.Hash = r.rc.CommitSHA
		cm.previous.Hash = manifest.Commit
		return cm, nil
	}

	rev := r.rc.CommitSHA
	if rev == "" {
		rev = "HEAD"
	}
	current, err := r.repo.Commit(ctx, rev)
	if err != nil {
		return cm, apperrors.Fatal(apperrors.FatalIndexCheck, err)
	}
	cm.current = current
	cm.previous = current

	if manifest.Commit != "" {
		indexed, err := r.repo.Commit(ctx, manifest.Commit)
		if err != nil {
			r.logger.Info("index commit is not part of this repository", "commit", manifest.Commit, "error", err.Error())
			cm.indexErr = err
		} else {
			cm.indexed = &indexed
			cm.previous = indexed
		}
	}
	if cm.indexed == nil {
		if parent, err := r.repo.Commit(ctx, current.Hash+"^"); err == nil {
			cm.previous = parent
		}
	}

	diff, err := r.repo.Diff(ctx, cm.previous.Hash, cm.current.Hash, r.cfg.PacksFolder+"/")
	if err != nil {
		return cm, apperrors.Fatal(apperrors.FatalIndexCheck, err)
	}
	cm.diff = diff

	r.logger.Info("resolved commits", "current", cm.current.Hash, "previous", cm.previous.Hash, "changedFiles", len(diff))
	return cm, nil
}

// checkFreshness stops the run when the published index already covers the
// current commit. Only production and build buckets are checked, and an
// update of private content always proceeds.
func (r *Runner) checkFreshness(cm commits, manifest index.Manifest, privateUpdated bool) error {
	if !r.cfg.IsProductionOrBuildBucket() {
		r.logger.Info("skipping index update check in non production/build bucket")
		return nil
	}
	if privateUpdated {
		r.logger.V(1).Info("skipping index update check, private content was updated")
		return nil
	}
	if manifest.IsEmpty() || r.repo == nil {
		r.logger.Info("no index commit to compare with", "manifestEmpty", manifest.IsEmpty())
		return nil
	}
	if cm.indexErr != nil {
		return apperrors.Fatal(apperrors.FatalIndexUpToDate,
			fmt.Errorf("index commit %s is newer than this checkout: %w", manifest.Commit, cm.indexErr))
	}
	if cm.indexed == nil {
		return nil
	}
	if !cm.current.CommittedAt.After(cm.indexed.CommittedAt) {
		return apperrors.Fatal(apperrors.FatalIndexUpToDate,
			fmt.Errorf("current commit %s (%s) is not newer than index commit %s (%s)",
				cm.current.Hash, cm.current.CommittedAt, cm.indexed.Hash, cm.indexed.CommittedAt))
	}
	if len(cm.diff) == 0 {
		return apperrors.Fatal(apperrors.FatalIndexUpToDate,
			fmt.Errorf("no pack changes between index commit %s and %s", cm.indexed.Hash, cm.current.Hash))
	}
	r.logger.Info("found changed packs since the index commit", "index", cm.indexed.Hash, "current", cm.current.Hash)
	return nil
}
