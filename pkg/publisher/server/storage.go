package server

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/blobstore"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
)

// StorageComponents holds the stores a run or the server works against.
type StorageComponents struct {
	BlobDB    *database.DB
	JournalDB *database.DB
	// Store is the target bucket, PrivateStore is nil without a private bucket
	Store        *blobstore.Badger
	PrivateStore *blobstore.Badger
	Journal      *events.Storage
	Runs         *store.Runs
}

// NewStorageComponents opens the blob store and the journal. Both live in
// one database when their paths are the same.
func NewStorageComponents(cfg config.Config, logger logr.Logger) (*StorageComponents, error) {
	logger.Info("Opening blob store", "path", cfg.StorePath)
	blobDB, err := database.NewDB(cfg.StorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	journalDB := blobDB
	if cfg.JournalPath != "" && filepath.Clean(cfg.JournalPath) != filepath.Clean(cfg.StorePath) {
		logger.Info("Opening run journal", "path", cfg.JournalPath)
		journalDB, err = database.NewDB(cfg.JournalPath, logger)
		if err != nil {
			blobDB.Close()
			return nil, fmt.Errorf("failed to open run journal: %w", err)
		}
	}

	runs, err := store.NewRuns(journalDB, logger)
	if err != nil {
		closeAll(blobDB, journalDB)
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	sc := &StorageComponents{
		BlobDB:    blobDB,
		JournalDB: journalDB,
		Store:     blobstore.NewBadger(blobDB, cfg.BucketName, cfg.PublicBaseURL, logger),
		Journal:   events.NewStorage(journalDB, logger),
		Runs:      runs,
	}
	if cfg.PrivateBucketName != "" {
		sc.PrivateStore = blobstore.NewBadger(blobDB, cfg.PrivateBucketName, cfg.PublicBaseURL, logger)
	}
	logger.Info("Storage initialized", "bucket", cfg.BucketName, "privateBucket", cfg.PrivateBucketName, "runs", len(runs.List()))
	return sc, nil
}

func (sc *StorageComponents) Close() error {
	return closeAll(sc.BlobDB, sc.JournalDB)
}

func closeAll(blobDB, journalDB *database.DB) error {
	var errs []error
	if journalDB != nil && journalDB != blobDB {
		if err := journalDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close run journal: %w", err))
		}
	}
	if blobDB != nil {
		if err := blobDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close blob store: %w", err))
		}
	}
	return errors.Join(errs...)
}
