package pack

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
)

// previewFolders hold dashboard and report preview images, uploaded under
// the versioned path of the pack.
var previewFolders = []string{"XSIAMDashboards", "XSIAMReports"}

// RepoPrefix is the path of the pack inside the content repository.
func (p *Pack) RepoPrefix(packsFolder string) string {
	return path.Join(packsFolder, p.Name) + "/"
}

func changedIn(diff []string, repoPath string) bool {
	return slices.Contains(diff, repoPath)
}

// UploadImages uploads the author image and every integration image. An
// image is uploaded when override is set, when it changed in diff, or when
// the store does not have it yet.
func (p *Pack) UploadImages(ctx context.Context, store blobstore.Store, basePath, packsFolder string, diff []string, override bool) error {
	p.IntegrationImages = nil
	p.AuthorImage = nil

	author := filepath.Join(p.Path, AuthorImageFile)
	if _, err := os.Stat(author); err == nil {
		rec, err := p.uploadImage(ctx, store, author, path.Join(basePath, p.Name, AuthorImageFile),
			p.RepoPrefix(packsFolder)+AuthorImageFile, diff, override)
		if err != nil {
			return err
		}
		p.AuthorImage = rec
	}

	integrations := filepath.Join(p.Path, "Integrations")
	if _, err := os.Stat(integrations); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(integrations, func(local string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), "_image.png") {
			return nil
		}
		rel, err := filepath.Rel(p.Path, local)
		if err != nil {
			return err
		}
		rec, err := p.uploadImage(ctx, store, local, path.Join(basePath, p.Name, d.Name()),
			p.RepoPrefix(packsFolder)+filepath.ToSlash(rel), diff, override)
		if err != nil {
			return err
		}
		if rec != nil {
			p.IntegrationImages = append(p.IntegrationImages, *rec)
		}
		return nil
	})
}

// UploadPreviewImages uploads dashboard and report previews under the
// versioned path of the pack.
func (p *Pack) UploadPreviewImages(ctx context.Context, store blobstore.Store, basePath, packsFolder string, diff []string) error {
	p.PreviewImages = nil
	for _, folder := range previewFolders {
		root := filepath.Join(p.Path, folder)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(local string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") {
				return nil
			}
			rel, err := filepath.Rel(p.Path, local)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			rec, err := p.uploadImage(ctx, store, local, path.Join(basePath, p.Name, p.Version, rel),
				p.RepoPrefix(packsFolder)+rel, diff, false)
			if err != nil {
				return err
			}
			if rec != nil {
				p.PreviewImages = append(p.PreviewImages, *rec)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// uploadImage returns nil when the image was already published and left
// untouched.
func (p *Pack) uploadImage(ctx context.Context, store blobstore.Store, local, target, repoPath string, diff []string, override bool) (*ImageRecord, error) {
	if !override && !changedIn(diff, repoPath) {
		exists, err := store.Exists(ctx, target)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}
	}

	blob, err := store.Upload(ctx, target, local)
	if err != nil {
		return nil, err
	}
	p.logger.V(1).Info("uploaded image", "path", target)
	return &ImageRecord{Name: path.Base(target), URL: blob.PublicURL}, nil
}
