// Package pipeline runs a publication: it takes every selected pack through
// its state machine, resolves dependencies on packs published in the same
// run and hands the merged index to the publisher.
package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/gc"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
	"github.com/garunski/marketplace-publisher/pkg/publisher/private"
	"github.com/garunski/marketplace-publisher/pkg/publisher/publisher"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
	"github.com/garunski/marketplace-publisher/pkg/publisher/summary"
	"github.com/garunski/marketplace-publisher/pkg/publisher/vcs"
)

const (
	indexWorkDir        = ".index"
	privateIndexWorkDir = ".private-index"
	uploadedPacksDir    = "uploaded_packs"
)

// Deps are the collaborators of a Runner. Store is required; a nil
// PrivateStore disables the private merge, a nil Repo disables change
// detection, and Journal and Runs are optional.
type Deps struct {
	Store        blobstore.Store
	PrivateStore blobstore.Store
	Repo         vcs.Repository
	Signer       pack.Signer
	Journal      events.EventStorage
	Runs         store.RunStore
	Logger       logr.Logger
}

type Runner struct {
	cfg          config.Config
	rc           config.RunContext
	store        blobstore.Store
	privateStore blobstore.Store
	repo         vcs.Repository
	signer       pack.Signer
	journal      events.EventStorage
	runs         store.RunStore
	logger       logr.Logger
	now          func() time.Time
	runID        string
}

func NewRunner(cfg config.Config, rc config.RunContext, d Deps) *Runner {
	signer := d.Signer
	if signer == nil {
		signer = pack.NopSigner{}
	}
	runID := uuid.New().String()
	return &Runner{
		cfg:          cfg,
		rc:           rc,
		store:        d.Store,
		privateStore: d.PrivateStore,
		repo:         d.Repo,
		signer:       signer,
		journal:      d.Journal,
		runs:         d.Runs,
		logger:       d.Logger.WithValues("run", runID),
		now:          time.Now,
		runID:        runID,
	}
}

func (r *Runner) RunID() string {
	return r.runID
}

// Result is the outcome of a run that was not stopped by a fatal error.
type Result struct {
	RunID     string
	Packs     []*pack.Pack
	Private   private.Result
	GC        gc.Report
	Published publisher.Result
	Summary   summary.Summary
}

// ExitCode is 1 when a pack failed and the configuration treats pack
// failures as a failed build.
func (res *Result) ExitCode(cfg config.Config) int {
	if len(res.Summary.Failed) > 0 && cfg.FailOnPackFailure() {
		return 1
	}
	return 0
}

// runState is what every stage of a run reads. Only the tree changes
// during the passes and it guards itself.
type runState struct {
	snap        *snapshot.Snapshot
	tree        *index.Tree
	commits     commits
	graph       *deps.Graph
	mapping     deps.Mapping
	basePath    string
	uploadedDir string
}

func (r *Runner) formatOptions(rs *runState) pack.FormatOptions {
	return pack.FormatOptions{
		Tree:        rs.tree,
		Graph:       rs.graph,
		Mapping:     rs.mapping,
		BuildNumber: r.cfg.BuildNumber,
		Commit:      rs.commits.current.Hash,
		Now:         r.now(),
	}
}

func (r *Runner) artifactsDir() string {
	if r.cfg.ArtifactsDir != "" {
		return r.cfg.ArtifactsDir
	}
	return filepath.Dir(r.cfg.PacksArtifactsPath)
}

// record journals the current status of p.
func (r *Runner) record(p *pack.Pack, operation string, err error) {
	msg := p.Status.Label()
	var e events.Event
	switch p.Status.Kind() {
	case pack.KindFailure:
		e = events.Error(r.runID, p.Name, operation, msg, err)
	case pack.KindSkip:
		e = events.Skip(r.runID, p.Name, operation, msg)
	case pack.KindSuccess:
		e = events.Success(r.runID, p.Name, operation, msg)
	default:
		e = events.Info(r.runID, p.Name, operation, msg)
	}
	e = e.WithStatus(p.Status.String())
	if p.Version != "" {
		e = e.WithDetail("version", p.Version)
	}
	events.StoreEventSafe(r.journal, r.logger, e)
}

func (r *Runner) note(operation, message string) {
	events.StoreEventSafe(r.journal, r.logger, events.Info(r.runID, "", operation, message))
}

func (r *Runner) removeWorkDirs() {
	for _, dir := range []string{indexWorkDir, privateIndexWorkDir} {
		if err := os.RemoveAll(filepath.Join(r.cfg.ExtractPath, dir)); err != nil {
			r.logger.V(1).Info("failed to remove work directory", "dir", dir, "error", err.Error())
		}
	}
}
