package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
)

func resetViper(t *testing.T, withRun bool, args []string) {
	t.Helper()
	v = viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	d := config.DefaultConfig()
	addStorageFlags(fs, d)
	if withRun {
		addRunFlags(fs, d)
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { v = viper.New() })
}

func TestLoadConfig_Flags(t *testing.T) {
	resetViper(t, true, []string{
		"--packs-artifacts-path", "/tmp/content_packs.zip",
		"--bucket", "marketplace-dist",
		"--target-packs", "Alpha,Beta",
		"--build-number", "77",
		"--workers", "4",
		"--bucket-upload",
	})

	cfg := loadConfig(true)
	if cfg.PacksArtifactsPath != "/tmp/content_packs.zip" || cfg.BucketName != "marketplace-dist" {
		t.Errorf("paths = %q %q", cfg.PacksArtifactsPath, cfg.BucketName)
	}
	if cfg.TargetPacks != "Alpha,Beta" || cfg.BuildNumber != "77" || cfg.Workers != 4 {
		t.Errorf("run settings = %q %q %d", cfg.TargetPacks, cfg.BuildNumber, cfg.Workers)
	}
	if !cfg.BucketUpload || cfg.FailOnPackFailure() {
		t.Error("bucket upload flow not applied")
	}
	if !cfg.RemoveTestPlaybooks {
		t.Error("default remove-test-playbooks lost")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	resetViper(t, true, []string{"--bucket", "from-flag"})

	path := filepath.Join(t.TempDir(), "upload.yaml")
	data := []byte(`bucket: from-file
marketplace: marketplacev2
core-packs:
  marketplacev2: [Base, CommonScripts]
upgrade-core-packs:
  marketplacev2: [Base]
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(true)
	if cfg.BucketName != "from-flag" {
		t.Errorf("bucket = %q, flags must win over the config file", cfg.BucketName)
	}
	if cfg.Marketplace != config.MarketplaceV2 {
		t.Errorf("marketplace = %q, want marketplacev2", cfg.Marketplace)
	}
	if got := cfg.RequiredCorePacks(); len(got) != 2 || got[1] != "CommonScripts" {
		t.Errorf("core packs = %v", got)
	}
	if got := cfg.CorePacksToUpgrade(); len(got) != 1 || got[0] != "Base" {
		t.Errorf("upgrade core packs = %v", got)
	}
	if cfg.BuildNumber == "" {
		t.Error("build number default not filled")
	}
}

func TestLoadConfig_ServeIgnoresRunSettings(t *testing.T) {
	resetViper(t, false, []string{"--bucket", "marketplace-dist"})
	cfg := loadConfig(false)
	if cfg.BucketName != "marketplace-dist" {
		t.Errorf("bucket = %q", cfg.BucketName)
	}
	if cfg.TargetPacks != config.TargetAll || cfg.Workers < 1 {
		t.Errorf("run defaults = %q %d, want untouched defaults", cfg.TargetPacks, cfg.Workers)
	}
}
