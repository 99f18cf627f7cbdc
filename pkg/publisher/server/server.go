// Package server exposes the publisher API over HTTP and prunes the run
// journal in the background.
package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/api"
	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
)

// Config holds server configuration
type Config struct {
	AppVersion       string
	Port             string
	JournalRetention time.Duration
	CleanupInterval  time.Duration
}

type Server struct {
	config     Config
	logger     logr.Logger
	storage    *StorageComponents
	handler    *api.Handler
	httpServer *http.Server
	now        func() time.Time
}

// NewServer serves the given storage. The server owns it from then on and
// closes it in Close.
func NewServer(cfg Config, pub config.Config, storage *StorageComponents, logger logr.Logger) (*Server, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.JournalRetention <= 0 {
		cfg.JournalRetention = DefaultJournalRetention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}

	handler := api.NewHandler(api.Options{
		Version:  cfg.AppVersion,
		Journal:  storage.Journal,
		Runs:     storage.Runs,
		Store:    storage.Store,
		BasePath: pub.IndexBasePath(pub.BucketName),
		WorkDir:  filepath.Join(pub.ExtractPath, ".serve-index"),
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     logger,
		storage:    storage,
		handler:    handler,
		httpServer: httpServer,
		now:        time.Now,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Close() error {
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
