package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded runs, the run journal and the published index over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		cfg := loadConfig(false)
		if cfg.BucketName == "" {
			return fmt.Errorf("invalid configuration: BucketName cannot be empty")
		}

		storage, err := server.NewStorageComponents(cfg, logger)
		if err != nil {
			return err
		}
		srv, err := server.NewServer(server.Config{
			AppVersion:       Version,
			Port:             v.GetString("port"),
			JournalRetention: v.GetDuration("journal-retention"),
			CleanupInterval:  v.GetDuration("cleanup-interval"),
		}, cfg, storage, logger)
		if err != nil {
			storage.Close()
			return err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				logger.Error(err, "failed to close server")
			}
		}()

		ctx := cmd.Context()
		if err := srv.Start(ctx); err != nil {
			return err
		}
		return srv.WaitForShutdown(ctx)
	},
}

func init() {
	addStorageFlags(serveCmd.Flags(), config.DefaultConfig())
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	serveCmd.Flags().String("port", port, "HTTP port")
	serveCmd.Flags().Duration("journal-retention", server.DefaultJournalRetention, "how long journal events are kept")
	serveCmd.Flags().Duration("cleanup-interval", time.Hour, "interval between journal cleanups")
}
