package pack

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

// indexFiles are the working copy files that belong in the index entry.
var indexFiles = map[string]bool{
	MetadataFile:  true,
	ChangelogFile: true,
	ReadmeFile:    true,
}

// RemoveUnwantedFiles drops folders that are not shipped to clients.
func (p *Pack) RemoveUnwantedFiles(removeTestPlaybooks bool) error {
	if !removeTestPlaybooks {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(p.Path, TestPlaybooksDir)); err != nil {
		return apperrors.WrapStorage(err, "remove test playbooks of "+p.Name)
	}
	return nil
}

// Sign signs the working copy.
func (p *Pack) Sign(signer Signer) error {
	if signer == nil {
		return nil
	}
	return signer.Sign(p.Path)
}

// Zip writes the working copy into the pack artifact.
func (p *Pack) Zip() error {
	dst := p.ZipPath()
	if err := archive.WriteDir(dst, p.Path, ""); err != nil {
		return err
	}
	p.ArtifactPath = dst
	return nil
}

// CopyArtifact copies the pack artifact into dir.
func (p *Pack) CopyArtifact(dir string) error {
	if p.ArtifactPath == "" {
		return errors.New("pack " + p.Name + " has no artifact")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.WrapStorage(err, "create "+dir)
	}
	src, err := os.Open(p.ArtifactPath)
	if err != nil {
		return apperrors.WrapStorage(err, "open "+p.ArtifactPath)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, p.Name+".zip"))
	if err != nil {
		return apperrors.WrapStorage(err, "create artifact copy")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperrors.WrapStorage(err, "copy artifact")
	}
	return dst.Close()
}

// Upload stores the artifact under its version qualified path. An existing
// artifact is kept unless override is set; skipped reports that case.
func (p *Pack) Upload(ctx context.Context, store blobstore.Store, basePath string, override bool) (skipped bool, err error) {
	target := p.StoragePath(basePath)

	if !override {
		exists, err := store.Exists(ctx, target)
		if err != nil {
			return false, err
		}
		if exists {
			p.logger.Info("pack version already exists in storage, skipping upload", "path", target)
			p.PublicURL = publicURLOf(ctx, store, target)
			return true, nil
		}
	}

	blob, err := store.Upload(ctx, target, p.ArtifactPath, blobstore.WithCacheControl("no-cache,max-age=0"))
	if err != nil {
		return false, err
	}
	p.PublicURL = blob.PublicURL
	p.logger.Info("uploaded pack", "path", target, "generation", blob.Generation)
	return false, nil
}

func publicURLOf(ctx context.Context, store blobstore.Store, path string) string {
	blob, err := store.Stat(ctx, path)
	if err != nil {
		return ""
	}
	return blob.PublicURL
}

// ExistsInIndex reports whether the index has an entry for the pack.
func (p *Pack) ExistsInIndex(tree *index.Tree) (bool, error) {
	if !tree.Has(p.Name) {
		return false, nil
	}
	if _, _, err := PublishedMetadata(tree, p.Name); err != nil {
		return true, err
	}
	return true, nil
}

// PrepareForIndexUpload prunes the working copy down to the index files.
func (p *Pack) PrepareForIndexUpload() error {
	entries, err := os.ReadDir(p.Path)
	if err != nil {
		return apperrors.WrapStorage(err, "read "+p.Path)
	}
	for _, e := range entries {
		if indexFiles[e.Name()] && e.Type().IsRegular() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.Path, e.Name())); err != nil {
			return apperrors.WrapStorage(err, "remove "+e.Name())
		}
	}
	return nil
}
