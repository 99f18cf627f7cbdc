package config

import "fmt"

// Builder provides a fluent interface for building run configuration.
type Builder struct {
	config Config
}

// NewBuilder creates a new configuration builder with default values.
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithPacksArtifactsPath sets the zip bundle holding the packs to upload.
func (b *Builder) WithPacksArtifactsPath(path string) *Builder {
	b.config.PacksArtifactsPath = path
	return b
}

// WithExtractPath sets the working directory packs and the index are unpacked into.
func (b *Builder) WithExtractPath(path string) *Builder {
	b.config.ExtractPath = path
	return b
}

// WithContentRepoPath sets the content repository checkout used for diffs.
func (b *Builder) WithContentRepoPath(path string) *Builder {
	b.config.ContentRepoPath = path
	return b
}

// WithBucket sets the target bucket.
func (b *Builder) WithBucket(name string) *Builder {
	b.config.BucketName = name
	return b
}

// WithPrivateBucket sets the private bucket merged into the public index.
func (b *Builder) WithPrivateBucket(name string) *Builder {
	b.config.PrivateBucketName = name
	return b
}

// WithStorageBasePath sets the base path of packs inside the bucket.
func (b *Builder) WithStorageBasePath(path string) *Builder {
	b.config.StorageBasePath = path
	return b
}

// WithTargetPacks sets the pack selector: All, Modified or a comma separated list.
func (b *Builder) WithTargetPacks(target string) *Builder {
	b.config.TargetPacks = target
	return b
}

// WithBuildNumber sets the build identifier used as index revision.
func (b *Builder) WithBuildNumber(build string) *Builder {
	b.config.BuildNumber = build
	return b
}

// WithMarketplace sets the marketplace the run publishes for.
func (b *Builder) WithMarketplace(marketplace string) *Builder {
	b.config.Marketplace = marketplace
	return b
}

// WithOverrideAllPacks forces re-upload of every pack version.
func (b *Builder) WithOverrideAllPacks(override bool) *Builder {
	b.config.OverrideAllPacks = override
	return b
}

// WithForceUpload marks the run as a forced upload.
func (b *Builder) WithForceUpload(force bool) *Builder {
	b.config.ForceUpload = force
	return b
}

// WithBucketUpload marks the run as part of the bucket upload flow.
func (b *Builder) WithBucketUpload(bucketUpload bool) *Builder {
	b.config.BucketUpload = bucketUpload
	return b
}

// WithDependenciesZip enables the packs-with-dependencies zip upload.
func (b *Builder) WithDependenciesZip(enabled bool) *Builder {
	b.config.CreateDependenciesZip = enabled
	return b
}

// WithSignatureKey sets the base64 encoded signing key.
func (b *Builder) WithSignatureKey(key string) *Builder {
	b.config.SignatureKey = key
	return b
}

// WithPackDependencies sets the pack dependencies mapping file.
func (b *Builder) WithPackDependencies(path string) *Builder {
	b.config.PackDependenciesPath = path
	return b
}

// WithArtifactsDir sets where index.json, corepacks.json and results are copied.
func (b *Builder) WithArtifactsDir(dir string) *Builder {
	b.config.ArtifactsDir = dir
	return b
}

// WithRemoveTestPlaybooks controls whether test playbooks ship in the artifact.
func (b *Builder) WithRemoveTestPlaybooks(remove bool) *Builder {
	b.config.RemoveTestPlaybooks = remove
	return b
}

// WithLandingPage sets the landing page sections file.
func (b *Builder) WithLandingPage(path string) *Builder {
	b.config.LandingPagePath = path
	return b
}

// WithPrivateBasePath sets the base path of the private index.
func (b *Builder) WithPrivateBasePath(path string) *Builder {
	b.config.PrivateBasePath = path
	return b
}

// WithStorePath sets the directory of the local blob store.
func (b *Builder) WithStorePath(path string) *Builder {
	b.config.StorePath = path
	return b
}

// WithPublicBaseURL sets the URL prefix of published objects.
func (b *Builder) WithPublicBaseURL(url string) *Builder {
	b.config.PublicBaseURL = url
	return b
}

// WithJournalPath sets the directory of the run journal.
func (b *Builder) WithJournalPath(path string) *Builder {
	b.config.JournalPath = path
	return b
}

// WithWorkers sets the size of the first pass worker pool.
func (b *Builder) WithWorkers(workers int) *Builder {
	b.config.Workers = workers
	return b
}

// WithCorePacks sets the required and upgradable core packs of a marketplace.
func (b *Builder) WithCorePacks(marketplace string, required, upgrade []string) *Builder {
	corePacks := make(map[string][]string, len(b.config.CorePacks)+1)
	for k, v := range b.config.CorePacks {
		corePacks[k] = v
	}
	corePacks[marketplace] = required
	b.config.CorePacks = corePacks

	upgradePacks := make(map[string][]string, len(b.config.UpgradeCorePacks)+1)
	for k, v := range b.config.UpgradeCorePacks {
		upgradePacks[k] = v
	}
	upgradePacks[marketplace] = upgrade
	b.config.UpgradeCorePacks = upgradePacks
	return b
}

// WithBucketRoles overrides the production, build and private production bucket names.
func (b *Builder) WithBucketRoles(production, ciBuild, productionPrivate string) *Builder {
	b.config.ProductionBucket = production
	b.config.CIBuildBucket = ciBuild
	b.config.ProductionPrivateBucket = productionPrivate
	return b
}

// Build returns the configured Config and validates it.
// Returns an error if validation fails.
func (b *Builder) Build() (Config, error) {
	cfg := b.config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustBuild returns the configured Config and panics if validation fails.
func (b *Builder) MustBuild() Config {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}
	return cfg
}
