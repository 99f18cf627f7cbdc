package pipeline

import (
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
)

func (r *Runner) startRecord() {
	if r.runs == nil {
		return
	}
	rec := store.RunRecord{
		ID:          r.runID,
		BuildNumber: r.cfg.BuildNumber,
		Marketplace: r.cfg.Marketplace,
		Bucket:      r.cfg.BucketName,
		Commit:      r.rc.CommitSHA,
		StartedAt:   r.now().UTC(),
	}
	if err := r.runs.Create(rec); err != nil {
		r.logger.Error(err, "failed to record run start")
	}
}

// finishRecord stores the outcome of the run, fatal or not.
func (r *Runner) finishRecord(res *Result, runErr error) {
	if r.runs == nil {
		return
	}
	rec, ok := r.runs.Get(r.runID)
	if !ok {
		return
	}
	rec.FinishedAt = r.now().UTC()
	rec.Packs = make([]store.PackOutcome, 0, len(res.Packs))
	for _, p := range res.Packs {
		rec.Packs = append(rec.Packs, store.PackOutcome{
			Name:    p.Name,
			Version: p.Version,
			Status:  p.Status.String(),
			Kind:    p.Status.Kind().String(),
			Message: p.Status.Label(),
		})
	}
	if runErr != nil {
		rec.Fatal = runErr.Error()
		rec.ExitCode = 1
		if fatal, ok := apperrors.AsFatal(runErr); ok {
			rec.ExitCode = fatal.ExitCode()
		}
	} else {
		rec.Published = res.Published.Blob.Generation != 0
		rec.Generation = int64(res.Published.Blob.Generation)
		rec.Commit = res.Published.Manifest.Commit
		rec.Fingerprint = res.Published.Fingerprint
		rec.ExitCode = res.ExitCode(r.cfg)
	}
	if err := r.runs.Update(rec); err != nil {
		r.logger.Error(err, "failed to record run outcome")
	}
}
