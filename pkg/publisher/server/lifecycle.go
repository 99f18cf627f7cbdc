package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func (s *Server) Start(ctx context.Context) error {
	go s.startJournalCleanup(ctx)

	go func() {
		s.logger.Info("Starting HTTP server", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(err, "HTTP server error")
		}
	}()

	return nil
}

func (s *Server) WaitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		s.logger.Info("Shutting down...")
		return s.Shutdown(context.Background())
	case <-ctx.Done():
		s.logger.Info("Shutting down due to context cancellation...")
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("Shutdown complete")
	return nil
}

func (s *Server) startJournalCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupJournal()
		}
	}
}

// cleanupJournal drops journal events older than the retention period.
func (s *Server) cleanupJournal() {
	before := s.now().Add(-s.config.JournalRetention)
	if err := s.storage.Journal.CleanupOldEvents(before); err != nil {
		s.logger.Error(err, "failed to cleanup old journal events")
		return
	}
	s.logger.V(1).Info("cleaned up journal", "before", before)
}
