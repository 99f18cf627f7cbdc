package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
)

const (
	MarketplaceXSOAR = "xsoar"
	MarketplaceV2    = "marketplacev2"

	TargetAll      = "All"
	TargetModified = "Modified"
)

// Config holds the immutable settings of one upload run. It is built once at
// startup and passed by value to every component.
type Config struct {
	// Inputs
	PacksArtifactsPath   string
	ExtractPath          string
	ContentRepoPath      string
	PacksFolder          string
	PackDependenciesPath string
	LandingPagePath      string
	ArtifactsDir         string

	// Target storage
	BucketName        string
	PrivateBucketName string
	StorageBasePath   string
	PrivateBasePath   string
	StorePath         string
	PublicBaseURL     string

	// Bucket roles
	ProductionBucket        string
	CIBuildBucket           string
	ProductionPrivateBucket string

	// Run behaviour
	TargetPacks           string
	BuildNumber           string
	Marketplace           string
	OverrideAllPacks      bool
	ForceUpload           bool
	BucketUpload          bool
	CreateDependenciesZip bool
	RemoveTestPlaybooks   bool
	SignatureKey          string
	Workers               int

	// Core packs per marketplace
	CorePacks        map[string][]string
	UpgradeCorePacks map[string][]string

	// Run journal
	JournalPath string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ContentRepoPath:         getEnvOrDefault("CONTENT_REPO_PATH", "."),
		PacksFolder:             "Packs",
		ExtractPath:             getEnvOrDefault("EXTRACT_PATH", os.TempDir()),
		StorageBasePath:         getEnvOrDefault("STORAGE_BASE_PATH", "content/packs"),
		PrivateBasePath:         "content/packs",
		StorePath:               getEnvOrDefault("BLOB_STORE_PATH", "/data/blobstore"),
		PublicBaseURL:           getEnvOrDefault("PUBLIC_BASE_URL", "https://storage.googleapis.com"),
		ProductionBucket:        "marketplace-dist",
		CIBuildBucket:           "marketplace-ci-build",
		ProductionPrivateBucket: "marketplace-dist-private",
		TargetPacks:             TargetAll,
		Marketplace:             MarketplaceXSOAR,
		RemoveTestPlaybooks:     true,
		Workers:                 parseIntOrDefault("UPLOAD_WORKERS", 1),
		CorePacks: map[string][]string{
			MarketplaceXSOAR: {"Base", "CommonPlaybooks", "CommonScripts", "DemistoRESTAPI", "FeedMitreAttackv2"},
			MarketplaceV2:    {"Base", "CommonPlaybooks", "CommonScripts", "DemistoRESTAPI"},
		},
		UpgradeCorePacks: map[string][]string{
			MarketplaceXSOAR: {"Base", "CommonScripts"},
			MarketplaceV2:    {"Base", "CommonScripts"},
		},
		JournalPath: getEnvOrDefault("JOURNAL_PATH", "/data/journal"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PacksArtifactsPath == "" {
		return fmt.Errorf("PacksArtifactsPath cannot be empty")
	}
	if c.ExtractPath == "" {
		return fmt.Errorf("ExtractPath cannot be empty")
	}
	if c.BucketName == "" {
		return fmt.Errorf("BucketName cannot be empty")
	}
	if c.StorageBasePath == "" {
		return fmt.Errorf("StorageBasePath cannot be empty")
	}
	if c.Marketplace == "" {
		return fmt.Errorf("Marketplace cannot be empty")
	}
	if c.TargetPacks == "" {
		return fmt.Errorf("TargetPacks cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("Workers must be positive")
	}
	return nil
}

// WithDefaults fills values that are derived at startup rather than
// configured, such as a fresh build number.
func (c Config) WithDefaults() Config {
	if c.BuildNumber == "" {
		c.BuildNumber = uuid.New().String()
	}
	if c.PrivateBasePath == "" {
		c.PrivateBasePath = c.StorageBasePath
	}
	return c
}

// IsProductionOrBuildBucket reports whether the target bucket is one of the
// recognized build buckets.
func (c Config) IsProductionOrBuildBucket() bool {
	return c.BucketName == c.ProductionBucket || c.BucketName == c.CIBuildBucket
}

// IsPrivateRun reports whether the run publishes into the private production
// bucket.
func (c Config) IsPrivateRun() bool {
	return c.BucketName == c.ProductionPrivateBucket
}

// IndexBasePath returns the base path under which index.zip lives for the
// given bucket.
func (c Config) IndexBasePath(bucket string) string {
	if bucket == c.ProductionPrivateBucket {
		return c.PrivateBasePath
	}
	return c.StorageBasePath
}

// RequiredCorePacks returns the core packs of the configured marketplace.
func (c Config) RequiredCorePacks() []string {
	return c.CorePacks[c.Marketplace]
}

// CorePacksToUpgrade returns the core packs that are upgraded on server
// upgrade for the configured marketplace.
func (c Config) CorePacksToUpgrade() []string {
	return c.UpgradeCorePacks[c.Marketplace]
}

// FailOnPackFailure reports whether failed packs turn into a non-zero exit.
// The bucket upload flow defers that decision to a later job.
func (c Config) FailOnPackFailure() bool {
	return !c.BucketUpload
}

// RunContext is the CI context of a run, sourced once at startup.
type RunContext struct {
	CI        bool
	Branch    string
	BuildID   string
	CommitSHA string
}

// RunContextFromEnv reads the CI context through getenv.
func RunContextFromEnv(getenv func(string) string) RunContext {
	_, ci := lookup(getenv, "CI")
	return RunContext{
		CI:        ci,
		Branch:    getenv("CI_COMMIT_BRANCH"),
		BuildID:   getenv("CI_BUILD_ID"),
		CommitSHA: getenv("CI_COMMIT_SHA"),
	}
}

// IsMaster reports whether the run was triggered from the master branch.
func (rc RunContext) IsMaster() bool {
	return rc.Branch == "master"
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return v, v != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
