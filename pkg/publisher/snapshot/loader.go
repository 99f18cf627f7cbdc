package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

// IndexArchive is the object name of the zipped index under a base path.
const IndexArchive = "index.zip"

// Snapshot is the index as it was read at the start of a run.
type Snapshot struct {
	Tree       *index.Tree
	Generation blobstore.Generation
	Bucket     string
	BlobPath   string
}

// Loader fetches the index of one bucket.
type Loader struct {
	store   blobstore.Store
	workDir string
	logger  logr.Logger
}

func NewLoader(store blobstore.Store, workDir string, logger logr.Logger) *Loader {
	return &Loader{
		store:   store,
		workDir: workDir,
		logger:  logger.WithValues("bucket", store.Bucket()),
	}
}

// BlobPath returns the object name of the index under basePath.
func BlobPath(basePath string) string {
	return path.Join(basePath, IndexArchive)
}

// Load downloads the index under basePath at the generation it is read at.
// A missing index is a first publish: the snapshot is empty with generation
// zero.
func (l *Loader) Load(ctx context.Context, basePath string) (*Snapshot, error) {
	blobPath := BlobPath(basePath)
	snap := &Snapshot{
		Tree:     index.NewTree(),
		Bucket:   l.store.Bucket(),
		BlobPath: blobPath,
	}

	if err := os.MkdirAll(l.workDir, 0755); err != nil {
		return nil, apperrors.Fatal(apperrors.FatalExtractDir, apperrors.WrapStorage(err, "create "+l.workDir))
	}

	blob, err := l.store.Stat(ctx, blobPath)
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		l.logger.Error(err, "index blob does not exist, starting from an empty index", "path", blobPath)
		return snap, nil
	}
	if err != nil {
		return nil, apperrors.Fatal(apperrors.FatalIndexDownload, err)
	}

	local := filepath.Join(l.workDir, IndexArchive)
	if err := l.store.Download(ctx, blobPath, local, blobstore.IfGenerationMatch(blob.Generation)); err != nil {
		return nil, apperrors.Fatal(apperrors.FatalIndexDownload, err)
	}
	defer os.Remove(local)

	tree, err := index.ReadZip(local)
	if errors.Is(err, index.ErrMissingRoot) {
		return nil, apperrors.Fatal(apperrors.FatalMissingIndexFolder, err)
	}
	if err != nil {
		return nil, apperrors.Fatal(apperrors.FatalIndexDownload, fmt.Errorf("unpack %s: %w", blobPath, err))
	}

	snap.Tree = tree
	snap.Generation = blob.Generation
	l.logger.Info("downloaded index", "path", blobPath, "generation", blob.Generation, "packs", tree.Len())
	return snap, nil
}
