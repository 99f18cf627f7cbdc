package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/snapshot"
)

const indexCacheControl = "no-cache,max-age=0"

// Request describes one index publication.
type Request struct {
	Snapshot        *snapshot.Snapshot
	BuildNumber     string
	Commit          string
	PrivatePacks    []index.PrivatePackRecord
	LandingSections []string
	// Private and Force runs skip the generation gate.
	Private      bool
	Force        bool
	ArtifactsDir string
}

type Result struct {
	Blob        blobstore.Blob
	Manifest    index.Manifest
	Fingerprint string
}

// Publisher writes the merged index back to the blob store.
type Publisher struct {
	store   blobstore.Store
	workDir string
	now     func() time.Time
	logger  logr.Logger
}

func New(store blobstore.Store, workDir string, logger logr.Logger) *Publisher {
	return &Publisher{
		store:   store,
		workDir: workDir,
		now:     time.Now,
		logger:  logger.WithValues("bucket", store.Bucket()),
	}
}

// Publish stamps the manifest, zips the tree and uploads it only if the
// remote index is still at the generation the snapshot was read at. The
// local tree and archive are disposed of whether or not the upload succeeds,
// after the manifest was copied to the artifacts dir.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	snap := req.Snapshot
	local := filepath.Join(p.workDir, snapshot.IndexArchive)
	defer p.dispose(snap.Tree, local, req.ArtifactsDir)

	manifest := index.Manifest{
		Revision:    req.BuildNumber,
		Modified:    index.ModifiedAt(p.now()),
		Packs:       req.PrivatePacks,
		Commit:      req.Commit,
		LandingPage: index.LandingPage{Sections: req.LandingSections},
	}
	if err := snap.Tree.SetManifest(manifest); err != nil {
		return Result{}, apperrors.Fatal(apperrors.FatalIndexUpload, err)
	}

	if err := os.MkdirAll(p.workDir, 0755); err != nil {
		return Result{}, apperrors.Fatal(apperrors.FatalIndexUpload, apperrors.WrapStorage(err, "create "+p.workDir))
	}
	if err := snap.Tree.WriteZip(local); err != nil {
		return Result{}, apperrors.Fatal(apperrors.FatalIndexUpload, err)
	}

	gated := !req.Private && !req.Force
	var opts []blobstore.Option
	opts = append(opts, blobstore.WithCacheControl(indexCacheControl))
	if gated {
		current, err := p.currentGeneration(ctx, snap.BlobPath)
		if err != nil {
			return Result{}, apperrors.Fatal(apperrors.FatalIndexUpload, err)
		}
		if current != snap.Generation {
			return Result{}, apperrors.Fatal(apperrors.FatalGenerationMismatch,
				fmt.Errorf("index %s is at generation %d, snapshot was read at %d", snap.BlobPath, current, snap.Generation))
		}
		opts = append(opts, blobstore.IfGenerationMatch(snap.Generation))
	}

	blob, err := p.store.Upload(ctx, snap.BlobPath, local, opts...)
	if errors.Is(err, blobstore.ErrPreconditionFailed) {
		return Result{}, apperrors.Fatal(apperrors.FatalGenerationMismatch, err)
	}
	if err != nil {
		return Result{}, apperrors.Fatal(apperrors.FatalIndexUpload, err)
	}

	fingerprint := snap.Tree.Fingerprint()
	p.logger.Info("published index",
		"path", snap.BlobPath,
		"generation", blob.Generation,
		"previousGeneration", snap.Generation,
		"packs", snap.Tree.Len(),
		"revision", manifest.Revision,
		"fingerprint", fingerprint)

	return Result{Blob: blob, Manifest: manifest, Fingerprint: fingerprint}, nil
}

func (p *Publisher) currentGeneration(ctx context.Context, blobPath string) (blobstore.Generation, error) {
	blob, err := p.store.Stat(ctx, blobPath)
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return blob.Generation, nil
}

func (p *Publisher) copyManifest(tree *index.Tree, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.WrapStorage(err, "create "+dir)
	}
	target := filepath.Join(dir, index.ManifestFile)
	if err := os.WriteFile(target, tree.ManifestBytes(), 0644); err != nil {
		return apperrors.WrapStorage(err, "write "+target)
	}
	return nil
}

func (p *Publisher) dispose(tree *index.Tree, local, artifactsDir string) {
	if artifactsDir != "" && tree.ManifestBytes() != nil {
		if err := p.copyManifest(tree, artifactsDir); err != nil {
			p.logger.Error(err, "failed to copy index manifest to artifacts", "dir", artifactsDir)
		}
	}
	tree.Reset()
	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		p.logger.V(1).Info("failed to remove local index archive", "path", local, "error", err)
	}
}
