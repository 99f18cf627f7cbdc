package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pack"
	"github.com/garunski/marketplace-publisher/pkg/publisher/pipeline"
	"github.com/garunski/marketplace-publisher/pkg/publisher/server"
	"github.com/garunski/marketplace-publisher/pkg/publisher/summary"
	"github.com/garunski/marketplace-publisher/pkg/publisher/vcs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload the packs of an artifacts bundle and publish the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		cfg := loadConfig(true)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code, err := publish(ctx, cfg, config.RunContextFromEnv(os.Getenv), logger)
		if err != nil || code != 0 {
			return &exitError{code: code, err: err}
		}
		return nil
	},
}

func init() {
	d := config.DefaultConfig()
	addStorageFlags(runCmd.Flags(), d)
	addRunFlags(runCmd.Flags(), d)
}

// publish runs one publication and returns the process exit code.
func publish(ctx context.Context, cfg config.Config, rc config.RunContext, logger logr.Logger) (int, error) {
	logger.Info("Starting upload", "version", Version, "bucket", cfg.BucketName,
		"marketplace", cfg.Marketplace, "build", cfg.BuildNumber, "target", cfg.TargetPacks)

	storage, err := server.NewStorageComponents(cfg, logger)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Error(err, "failed to close storage")
		}
	}()

	signer, err := pack.NewSigner(cfg.SignatureKey)
	if err != nil {
		return 1, fmt.Errorf("invalid signature key: %w", err)
	}

	deps := pipeline.Deps{
		Store:   storage.Store,
		Signer:  signer,
		Journal: storage.Journal,
		Runs:    storage.Runs,
		Logger:  logger,
	}
	if storage.PrivateStore != nil {
		deps.PrivateStore = storage.PrivateStore
	}
	if repo, err := vcs.Open(cfg.ContentRepoPath); err != nil {
		logger.Info("content repository is not a git checkout, change detection disabled",
			"path", cfg.ContentRepoPath, "error", err.Error())
	} else {
		deps.Repo = repo
	}

	runner := pipeline.NewRunner(cfg, rc, deps)
	res, err := runner.Run(ctx)
	if err != nil {
		fatal, ok := apperrors.AsFatal(err)
		if ok && fatal.Kind == apperrors.FatalIndexUpToDate {
			logger.Info("index is already up to date, nothing to publish", "reason", fatal.Err.Error())
			return fatal.ExitCode(), nil
		}
		logger.Error(err, "upload failed", "run", runner.RunID())
		if ok {
			return fatal.ExitCode(), err
		}
		return 1, err
	}

	if err := summary.Render(os.Stdout, res.Summary); err != nil {
		logger.Error(err, "failed to render summary")
	}
	logger.Info("Upload finished", "run", res.RunID, "generation", res.Published.Blob.Generation,
		"successful", len(res.Summary.Successful), "failed", len(res.Summary.Failed))

	code := res.ExitCode(cfg)
	if code != 0 {
		return code, errors.New("some packs failed to upload")
	}
	return 0, nil
}
