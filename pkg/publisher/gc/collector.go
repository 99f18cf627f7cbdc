package gc

import (
	"context"
	"path"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

// Report describes one collection pass.
type Report struct {
	Skipped      bool
	Removed      []string
	DeletedBlobs int
}

// Collector removes packs that no longer exist from the index and the
// object store.
type Collector struct {
	store    blobstore.Store
	basePath string
	logger   logr.Logger
}

func NewCollector(store blobstore.Store, basePath string, logger logr.Logger) *Collector {
	return &Collector{
		store:    store,
		basePath: basePath,
		logger:   logger.WithName("gc"),
	}
}

// ShouldRun reports whether collection may delete anything in this run.
// Only CI runs collect: master collects in the production and build buckets,
// other branches collect anywhere except production.
func ShouldRun(rc config.RunContext, cfg config.Config) bool {
	if !rc.CI {
		return false
	}
	if rc.IsMaster() {
		return cfg.BucketName == cfg.ProductionBucket || cfg.BucketName == cfg.CIBuildBucket
	}
	return cfg.BucketName != cfg.ProductionBucket
}

// ValidSet is the set of pack names allowed to stay in the index. Private
// pack ids are only valid in the xsoar marketplace.
func ValidSet(localPacks []string, private []index.PrivatePackRecord, marketplace string) map[string]struct{} {
	valid := make(map[string]struct{}, len(localPacks)+len(private))
	for _, name := range localPacks {
		valid[name] = struct{}{}
	}
	if marketplace == config.MarketplaceXSOAR {
		for _, r := range private {
			valid[r.ID] = struct{}{}
		}
	}
	return valid
}

// Collect removes every entry of tree outside valid, together with every
// object under its folder. The tree is locked for the whole scan.
func (c *Collector) Collect(ctx context.Context, tree *index.Tree, valid map[string]struct{}) (Report, error) {
	var report Report

	keep := func(name string) bool {
		_, ok := valid[name]
		return ok
	}

	remove := func(name string) error {
		// the trailing slash keeps packs sharing a name prefix apart
		prefix := path.Join(c.basePath, name) + "/"
		blobs, err := c.store.List(ctx, prefix)
		if err != nil {
			return err
		}
		for _, b := range blobs {
			if err := c.store.Delete(ctx, b); err != nil {
				return err
			}
			c.logger.Info("deleted invalid pack object", "pack", name, "url", b.PublicURL)
			report.DeletedBlobs++
		}
		c.logger.Info("deleted pack from index", "pack", name)
		return nil
	}

	removed, err := tree.Prune(keep, remove)
	report.Removed = removed
	if err != nil {
		return report, err
	}
	if len(removed) == 0 {
		c.logger.Info("no invalid packs detected inside index")
	}
	return report, nil
}

// Run applies the gate before collecting.
func (c *Collector) Run(ctx context.Context, rc config.RunContext, cfg config.Config, tree *index.Tree, valid map[string]struct{}) (Report, error) {
	if !ShouldRun(rc, cfg) {
		c.logger.Info("skipping cleanup of packs in the object store", "bucket", cfg.BucketName, "branch", rc.Branch)
		return Report{Skipped: true}, nil
	}
	return c.Collect(ctx, tree, valid)
}
