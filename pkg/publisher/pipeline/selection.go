package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

// ignoredNames are entries of the packs folder that are not packs.
var ignoredNames = map[string]bool{
	"__init__.py":  true,
	"ApiModules":   true,
	"NonSupported": true,
	"index":        true,
}

// localPacks lists the pack folders of the content repository.
func (r *Runner) localPacks() ([]string, error) {
	dir := filepath.Join(r.cfg.ContentRepoPath, r.cfg.PacksFolder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "read packs folder "+dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !ignoredNames[e.Name()] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// selectPacks resolves the target packs option: All, Modified (packs
// touched by diff) or a comma separated list of names.
func (r *Runner) selectPacks(diff []string) ([]string, error) {
	target := strings.TrimSpace(r.cfg.TargetPacks)
	var names []string

	switch {
	case target == "":
		return nil, apperrors.Fatal(apperrors.FatalPackSelection,
			fmt.Errorf("%w: no target packs given", apperrors.ErrInvalid))
	case strings.EqualFold(target, config.TargetAll):
		local, err := r.localPacks()
		if err != nil {
			return nil, apperrors.Fatal(apperrors.FatalPackSelection, err)
		}
		names = local
	case strings.EqualFold(target, config.TargetModified):
		prefix := r.cfg.PacksFolder + "/"
		for _, changed := range diff {
			rest, ok := strings.CutPrefix(changed, prefix)
			if !ok {
				continue
			}
			name, _, _ := strings.Cut(rest, "/")
			if name != "" && !ignoredNames[name] {
				names = append(names, name)
			}
		}
	default:
		for _, name := range strings.Split(target, ",") {
			name = strings.TrimSpace(name)
			if name != "" && !ignoredNames[name] {
				names = append(names, name)
			}
		}
	}

	names = uniqueSorted(names)
	r.logger.Info("selected packs to upload", "target", target, "count", len(names))
	return names, nil
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// extractArtifacts unpacks the packs bundle into the extract path.
func (r *Runner) extractArtifacts() error {
	if err := archive.Extract(r.cfg.PacksArtifactsPath, r.cfg.ExtractPath); err != nil {
		return apperrors.Fatal(apperrors.FatalArtifacts, err)
	}
	r.logger.Info("extracted packs artifacts", "path", r.cfg.PacksArtifactsPath, "dest", r.cfg.ExtractPath)
	return nil
}

// newPacks builds a pack for every selected name present in the bundle.
func (r *Runner) newPacks(names []string) []*pack.Pack {
	packs := make([]*pack.Pack, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(r.cfg.ExtractPath, name)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			r.logger.V(1).Info("selected pack is not in the artifacts bundle", "pack", name)
			continue
		}
		packs = append(packs, pack.New(name, dir, r.logger))
	}
	return packs
}
