package api

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
)

// loadIndex reads the published index into a private work directory so
// concurrent requests never share the downloaded archive.
func (h *Handler) loadIndex(ctx context.Context) (*snapshot.Snapshot, error) {
	if h.store == nil {
		return nil, fmt.Errorf("%w: blob store not available", apperrors.ErrStorage)
	}
	if err := os.MkdirAll(h.workDir, 0755); err != nil {
		return nil, apperrors.WrapStorage(err, "create "+h.workDir)
	}
	dir, err := os.MkdirTemp(h.workDir, "index-")
	if err != nil {
		return nil, apperrors.WrapStorage(err, "create index work directory")
	}
	defer os.RemoveAll(dir)

	return snapshot.NewLoader(h.store, dir, h.logger).Load(ctx, h.basePath)
}

func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := h.loadIndex(r.Context())
	if err != nil {
		h.logger.Error(err, "failed to load published index")
		WriteError(w, h.logger, err)
		return
	}
	manifest, err := snap.Tree.Manifest()
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if manifest.Packs == nil {
		manifest.Packs = []index.PrivatePackRecord{}
	}

	names := snap.Tree.Names()
	versions := make(map[string][]string, len(names))
	for _, name := range names {
		if e, ok := snap.Tree.Entry(name); ok {
			versions[name] = e.Versions()
		}
	}
	WriteJSONResponse(w, h.logger, http.StatusOK, IndexResponse{
		Bucket:      snap.Bucket,
		Path:        snap.BlobPath,
		Generation:  int64(snap.Generation),
		Fingerprint: snap.Tree.Fingerprint(),
		Manifest:    manifest,
		Packs:       names,
		Versions:    versions,
	})
}

// GetIndexPack returns the metadata.json of one index entry as published.
func (h *Handler) GetIndexPack(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := ValidatePackName(name); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	snap, err := h.loadIndex(r.Context())
	if err != nil {
		h.logger.Error(err, "failed to load published index")
		WriteError(w, h.logger, err)
		return
	}
	data, ok := snap.Tree.File(name, index.MetadataFile)
	if !ok {
		WriteError(w, h.logger, fmt.Errorf("%w: pack %s is not in the index", apperrors.ErrNotFound, name))
		return
	}
	WriteRawJSON(w, h.logger, data)
}
