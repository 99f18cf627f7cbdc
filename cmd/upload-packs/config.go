package main

import (
	"github.com/spf13/pflag"

	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
)

// addStorageFlags registers the flags shared by every command that opens
// the stores.
func addStorageFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("bucket", d.BucketName, "target bucket name")
	fs.String("private-bucket", d.PrivateBucketName, "private bucket name, empty to skip private packs")
	fs.String("storage-base-path", d.StorageBasePath, "base path of packs and index in the bucket")
	fs.String("private-base-path", d.PrivateBasePath, "base path of the private index")
	fs.String("store-path", d.StorePath, "directory of the blob store")
	fs.String("public-base-url", d.PublicBaseURL, "base URL objects are served under")
	fs.String("journal-path", d.JournalPath, "directory of the run journal")
	fs.String("extract-path", d.ExtractPath, "working directory for extracted packs and the index")
	fs.String("production-bucket", d.ProductionBucket, "name of the production bucket")
	fs.String("ci-build-bucket", d.CIBuildBucket, "name of the CI build bucket")
	fs.String("private-production-bucket", d.ProductionPrivateBucket, "name of the private production bucket")
}

func addRunFlags(fs *pflag.FlagSet, d config.Config) {
	fs.StringP("packs-artifacts-path", "a", d.PacksArtifactsPath, "zip bundle of the packs to upload")
	fs.String("content-repo-path", d.ContentRepoPath, "checkout of the content repository")
	fs.String("pack-dependencies", d.PackDependenciesPath, "pack dependencies JSON file")
	fs.String("landing-page", d.LandingPagePath, "landing page sections JSON file")
	fs.String("artifacts-dir", d.ArtifactsDir, "directory receiving index.json, corepacks.json and results")
	fs.StringP("target-packs", "p", d.TargetPacks, "packs to upload: All, Modified or a comma separated list")
	fs.StringP("build-number", "n", d.BuildNumber, "build number, a new UUID when empty")
	fs.String("marketplace", d.Marketplace, "marketplace to publish for")
	fs.BoolP("override-all-packs", "o", d.OverrideAllPacks, "upload every pack even when its version exists")
	fs.Bool("force-upload", d.ForceUpload, "publish the index even when it is up to date")
	fs.Bool("bucket-upload", d.BucketUpload, "bucket upload flow, pack failures do not fail the build")
	fs.Bool("create-dependencies-zip", d.CreateDependenciesZip, "upload packs bundled with their dependencies")
	fs.Bool("remove-test-playbooks", d.RemoveTestPlaybooks, "drop TestPlaybooks folders from pack artifacts")
	fs.StringP("signature-key", "k", d.SignatureKey, "base64 key used to sign pack artifacts")
	fs.IntP("workers", "w", d.Workers, "packs processed in parallel")
}

// loadConfig overlays flags, environment and config file on the defaults.
// Run settings are read only for commands that registered their flags.
func loadConfig(withRun bool) config.Config {
	cfg := config.DefaultConfig()

	cfg.BucketName = v.GetString("bucket")
	cfg.PrivateBucketName = v.GetString("private-bucket")
	cfg.StorageBasePath = v.GetString("storage-base-path")
	cfg.PrivateBasePath = v.GetString("private-base-path")
	cfg.StorePath = v.GetString("store-path")
	cfg.PublicBaseURL = v.GetString("public-base-url")
	cfg.JournalPath = v.GetString("journal-path")
	cfg.ExtractPath = v.GetString("extract-path")
	cfg.ProductionBucket = v.GetString("production-bucket")
	cfg.CIBuildBucket = v.GetString("ci-build-bucket")
	cfg.ProductionPrivateBucket = v.GetString("private-production-bucket")

	if withRun {
		cfg.PacksArtifactsPath = v.GetString("packs-artifacts-path")
		cfg.ContentRepoPath = v.GetString("content-repo-path")
		cfg.PackDependenciesPath = v.GetString("pack-dependencies")
		cfg.LandingPagePath = v.GetString("landing-page")
		cfg.ArtifactsDir = v.GetString("artifacts-dir")
		cfg.TargetPacks = v.GetString("target-packs")
		cfg.BuildNumber = v.GetString("build-number")
		cfg.Marketplace = v.GetString("marketplace")
		cfg.OverrideAllPacks = v.GetBool("override-all-packs")
		cfg.ForceUpload = v.GetBool("force-upload")
		cfg.BucketUpload = v.GetBool("bucket-upload")
		cfg.CreateDependenciesZip = v.GetBool("create-dependencies-zip")
		cfg.RemoveTestPlaybooks = v.GetBool("remove-test-playbooks")
		cfg.SignatureKey = v.GetString("signature-key")
		cfg.Workers = v.GetInt("workers")
	}

	// core packs lists only come from the config file
	if v.IsSet("core-packs") {
		for marketplace, packs := range v.GetStringMapStringSlice("core-packs") {
			cfg.CorePacks[marketplace] = packs
		}
	}
	if v.IsSet("upgrade-core-packs") {
		for marketplace, packs := range v.GetStringMapStringSlice("upgrade-core-packs") {
			cfg.UpgradeCorePacks[marketplace] = packs
		}
	}

	return cfg.WithDefaults()
}
