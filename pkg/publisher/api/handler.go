// Package api serves a read-only view of the publisher: recorded runs, the
// run journal and the index currently published in the bucket.
package api

import (
	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
)

// Options configure a Handler. Journal, Runs and Store may be nil; the
// routes backed by them then report the component as unavailable.
type Options struct {
	Version  string
	Journal  events.EventStorage
	Runs     store.RunStore
	Store    blobstore.Store
	BasePath string
	// WorkDir receives the index archive while it is read
	WorkDir string
	Logger  logr.Logger
}

type Handler struct {
	logger   logr.Logger
	version  string
	journal  events.EventStorage
	runs     store.RunStore
	store    blobstore.Store
	basePath string
	workDir  string
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		logger:   opts.Logger,
		version:  opts.Version,
		journal:  opts.Journal,
		runs:     opts.Runs,
		store:    opts.Store,
		basePath: opts.BasePath,
		workDir:  opts.WorkDir,
	}
}
