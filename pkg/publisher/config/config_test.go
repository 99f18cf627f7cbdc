package config

import (
	"testing"
)

func TestBuilder_Build(t *testing.T) {
	cfg, err := NewBuilder().
		WithPacksArtifactsPath("/tmp/content_packs.zip").
		WithExtractPath("/tmp/extract").
		WithBucket("marketplace-ci-build").
		WithMarketplace(MarketplaceV2).
		WithWorkers(4).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if cfg.BucketName != "marketplace-ci-build" {
		t.Errorf("BucketName = %v, want marketplace-ci-build", cfg.BucketName)
	}
	if cfg.Marketplace != MarketplaceV2 {
		t.Errorf("Marketplace = %v, want %v", cfg.Marketplace, MarketplaceV2)
	}
	if cfg.BuildNumber == "" {
		t.Error("Build() should generate a build number when none is set")
	}
	if !cfg.IsProductionOrBuildBucket() {
		t.Error("IsProductionOrBuildBucket() should be true for the ci build bucket")
	}
}

func TestBuilder_BuildKeepsBuildNumber(t *testing.T) {
	cfg := NewBuilder().
		WithPacksArtifactsPath("/tmp/content_packs.zip").
		WithBucket("bucket").
		WithBuildNumber("12345").
		MustBuild()

	if cfg.BuildNumber != "12345" {
		t.Errorf("BuildNumber = %v, want 12345", cfg.BuildNumber)
	}
}

func TestBuilder_BuildInvalid(t *testing.T) {
	if _, err := NewBuilder().WithBucket("bucket").Build(); err == nil {
		t.Error("Build() should fail without a packs artifacts path")
	}

	if _, err := NewBuilder().WithPacksArtifactsPath("/tmp/a.zip").Build(); err == nil {
		t.Error("Build() should fail without a bucket")
	}

	_, err := NewBuilder().
		WithPacksArtifactsPath("/tmp/a.zip").
		WithBucket("bucket").
		WithWorkers(0).
		Build()
	if err == nil {
		t.Error("Build() should fail with zero workers")
	}
}

func TestBuilder_WithCorePacksDoesNotShareDefaults(t *testing.T) {
	b1 := NewBuilder().WithCorePacks(MarketplaceXSOAR, []string{"A"}, nil)
	b2 := NewBuilder()

	if got := b1.config.CorePacks[MarketplaceXSOAR]; len(got) != 1 || got[0] != "A" {
		t.Errorf("CorePacks = %v, want [A]", got)
	}
	if got := b2.config.CorePacks[MarketplaceXSOAR]; len(got) == 1 && got[0] == "A" {
		t.Error("WithCorePacks() should not mutate the defaults of another builder")
	}
}

func TestConfig_IndexBasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageBasePath = "content/builds/branch/1/content/packs"
	cfg.PrivateBasePath = "content/packs"

	if got := cfg.IndexBasePath(cfg.ProductionPrivateBucket); got != "content/packs" {
		t.Errorf("IndexBasePath(private) = %v, want content/packs", got)
	}
	if got := cfg.IndexBasePath("other"); got != cfg.StorageBasePath {
		t.Errorf("IndexBasePath(other) = %v, want %v", got, cfg.StorageBasePath)
	}
}

func TestConfig_FailOnPackFailure(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.FailOnPackFailure() {
		t.Error("FailOnPackFailure() should be true outside the bucket upload flow")
	}
	cfg.BucketUpload = true
	if cfg.FailOnPackFailure() {
		t.Error("FailOnPackFailure() should be false in the bucket upload flow")
	}
}

func TestRunContextFromEnv(t *testing.T) {
	env := map[string]string{
		"CI":               "true",
		"CI_COMMIT_BRANCH": "pull/123",
		"CI_BUILD_ID":      "42",
		"CI_COMMIT_SHA":    "abc",
	}
	rc := RunContextFromEnv(func(k string) string { return env[k] })

	if !rc.CI {
		t.Error("CI should be true")
	}
	if rc.IsMaster() {
		t.Error("IsMaster() should be false for a pull request branch")
	}
	if rc.BuildID != "42" || rc.CommitSHA != "abc" {
		t.Errorf("unexpected context: %+v", rc)
	}

	empty := RunContextFromEnv(func(string) string { return "" })
	if empty.CI {
		t.Error("CI should be false when the variable is unset")
	}
}
