package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

// DependenciesZipName is the object name of a pack bundled with its
// mandatory dependencies.
func DependenciesZipName(name string) string {
	return name + "_with_dependencies.zip"
}

// uploadDependenciesZips bundles every completed pack with the artifacts of
// its all-levels dependencies when the pack or one of them was uploaded in
// this run. Only the xsoar marketplace serves these bundles.
func (r *Runner) uploadDependenciesZips(ctx context.Context, rs *runState, packs []*pack.Pack) {
	if !r.cfg.CreateDependenciesZip || r.cfg.Marketplace != config.MarketplaceXSOAR {
		return
	}
	byName := make(map[string]*pack.Pack, len(packs))
	for _, p := range packs {
		byName[p.Name] = p
	}

	r.logger.Info("collecting packs with dependencies zips")
	for _, p := range packs {
		kind := p.Status.Kind()
		if kind != pack.KindSuccess && kind != pack.KindSkip {
			continue
		}

		members := []*pack.Pack{p}
		for _, name := range p.AllLevelsDependencies {
			if d, ok := byName[name]; ok {
				members = append(members, d)
			}
		}
		uploaded := false
		for _, m := range members {
			if m.Status == pack.StatusSuccess {
				uploaded = true
				break
			}
		}
		if !uploaded {
			continue
		}

		if err := r.uploadDependenciesZip(ctx, rs, p, members); err != nil {
			r.record(p, "dependencies-zip", err)
			continue
		}
		r.record(p, "dependencies-zip", nil)
	}
}

func (r *Runner) uploadDependenciesZip(ctx context.Context, rs *runState, p *pack.Pack, members []*pack.Pack) error {
	bundleDir := filepath.Join(r.cfg.ExtractPath, p.Name+"_with_dependencies")
	bundle := bundleDir + ".zip"
	defer os.RemoveAll(bundleDir)
	defer os.Remove(bundle)

	for _, m := range members {
		if !hasArtifact(m) {
			if err := m.Sign(r.signer); err != nil {
				p.Status = pack.StatusFailedDependenciesZipSigning
				return err
			}
			if err := m.Zip(); err != nil {
				p.Status = pack.StatusFailedDependenciesZipSigning
				return err
			}
		}
		if err := m.CopyArtifact(bundleDir); err != nil {
			p.Status = pack.StatusFailedDependenciesZipSigning
			return err
		}
	}
	if err := archive.WriteDir(bundle, bundleDir, ""); err != nil {
		p.Status = pack.StatusFailedDependenciesZipSigning
		return err
	}

	target := path.Join(rs.basePath, p.Name, DependenciesZipName(p.Name))
	if _, err := r.store.Upload(ctx, target, bundle, blobstore.WithCacheControl("no-cache,max-age=0")); err != nil {
		p.Status = pack.StatusFailedDependenciesZipUploading
		return err
	}
	p.Logger().Info("uploaded pack with dependencies", "path", target, "members", len(members))
	return nil
}

func hasArtifact(p *pack.Pack) bool {
	if p.ArtifactPath == "" {
		return false
	}
	info, err := os.Stat(p.ArtifactPath)
	return err == nil && info.Mode().IsRegular()
}
