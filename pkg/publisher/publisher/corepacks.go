package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
)

// CorePacksFile is the object name of the core packs manifest.
const CorePacksFile = "corepacks.json"

type CorePacks struct {
	CorePacks        []string `json:"corePacks"`
	UpgradeCorePacks []string `json:"upgradeCorePacks"`
	BuildNumber      string   `json:"buildNumber"`
}

// BuildCorePacks resolves the artifact URL of every required core pack at
// the version recorded in the index. A required pack without an index entry
// or artifact fails the run.
func BuildCorePacks(ctx context.Context, store blobstore.Store, basePath string, tree *index.Tree, required, upgrade []string, buildNumber string) (CorePacks, error) {
	out := CorePacks{
		CorePacks:        []string{},
		UpgradeCorePacks: append([]string{}, upgrade...),
		BuildNumber:      buildNumber,
	}
	sort.Strings(out.UpgradeCorePacks)

	var missing []string
	for _, name := range required {
		md, ok, err := pack.PublishedMetadata(tree, name)
		if err != nil {
			return CorePacks{}, apperrors.Fatal(apperrors.FatalCorePacks, err)
		}
		if !ok || md.CurrentVersion == "" {
			missing = append(missing, name)
			continue
		}
		target := path.Join(basePath, name, md.CurrentVersion, name+".zip")
		blob, err := store.Stat(ctx, target)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		out.CorePacks = append(out.CorePacks, blob.PublicURL)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return CorePacks{}, apperrors.Fatal(apperrors.FatalCorePacks,
			fmt.Errorf("%w: core packs not published: %s", apperrors.ErrNotFound, strings.Join(missing, ", ")))
	}
	sort.Strings(out.CorePacks)
	return out, nil
}

// WriteCorePacks uploads the core packs manifest next to the index and
// copies it into artifactsDir when one is given.
func (p *Publisher) WriteCorePacks(ctx context.Context, basePath string, cp CorePacks, artifactsDir string) error {
	data, err := json.MarshalIndent(cp, "", "    ")
	if err != nil {
		return apperrors.Fatal(apperrors.FatalCorePacks, err)
	}
	if err := os.MkdirAll(p.workDir, 0755); err != nil {
		return apperrors.Fatal(apperrors.FatalCorePacks, apperrors.WrapStorage(err, "create "+p.workDir))
	}
	local := filepath.Join(p.workDir, CorePacksFile)
	if err := os.WriteFile(local, data, 0644); err != nil {
		return apperrors.Fatal(apperrors.FatalCorePacks, apperrors.WrapStorage(err, "write "+local))
	}
	defer os.Remove(local)

	target := path.Join(basePath, CorePacksFile)
	if _, err := p.store.Upload(ctx, target, local, blobstore.WithCacheControl(indexCacheControl)); err != nil {
		return apperrors.Fatal(apperrors.FatalCorePacks, err)
	}

	if artifactsDir != "" {
		if err := os.MkdirAll(artifactsDir, 0755); err != nil {
			return apperrors.WrapStorage(err, "create "+artifactsDir)
		}
		if err := os.WriteFile(filepath.Join(artifactsDir, CorePacksFile), data, 0644); err != nil {
			return apperrors.WrapStorage(err, "write "+CorePacksFile)
		}
	}
	p.logger.Info("wrote core packs manifest", "path", target, "corePacks", len(cp.CorePacks))
	return nil
}
