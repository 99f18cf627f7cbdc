package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

const keyPrefix = "runs/"

// Runs is a RunStore backed by badger with an in-memory read cache.
type Runs struct {
	db     *database.DB
	cache  *recordCache
	logger logr.Logger
}

// NewRuns creates the store and warms its cache from the database.
func NewRuns(db *database.DB, logger logr.Logger) (*Runs, error) {
	s := &Runs{
		db:     db,
		cache:  newRecordCache(),
		logger: logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the cache with what is persisted.
func (s *Runs) Reload() error {
	items, err := s.db.List(keyPrefix)
	if err != nil {
		return apperrors.WrapStorage(err, "list runs")
	}
	records := make(map[string][]byte, len(items))
	for key, value := range items {
		records[strings.TrimPrefix(key, keyPrefix)] = value
	}
	s.cache.replace(records)
	s.logger.V(1).Info("loaded run records", "count", len(records))
	return nil
}

func (s *Runs) Create(record RunRecord) error {
	if err := record.validate(); err != nil {
		return err
	}
	if _, exists := s.cache.get(record.ID); exists {
		return fmt.Errorf("%w: run already recorded: %s", apperrors.ErrConflict, record.ID)
	}
	return s.put(record)
}

func (s *Runs) Update(record RunRecord) error {
	if err := record.validate(); err != nil {
		return err
	}
	if _, exists := s.cache.get(record.ID); !exists {
		return fmt.Errorf("%w: run not found: %s", apperrors.ErrNotFound, record.ID)
	}
	return s.put(record)
}

func (s *Runs) put(record RunRecord) error {
	data, err := record.marshal()
	if err != nil {
		return fmt.Errorf("%w: encode run %s: %w", apperrors.ErrInvalid, record.ID, err)
	}
	if err := s.db.Set(keyPrefix+record.ID, data); err != nil {
		return apperrors.WrapStorage(err, "save run "+record.ID)
	}
	s.cache.set(record.ID, data)
	return nil
}

func (s *Runs) Delete(id string) error {
	if _, exists := s.cache.get(id); !exists {
		return fmt.Errorf("%w: run not found: %s", apperrors.ErrNotFound, id)
	}
	if err := s.db.Delete(keyPrefix + id); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return apperrors.WrapStorage(err, "delete run "+id)
		}
		s.logger.Info("run cached but not persisted, dropping from cache", "run", id)
	}
	s.cache.delete(id)
	return nil
}

func (s *Runs) Get(id string) (RunRecord, bool) {
	data, ok := s.cache.get(id)
	if !ok {
		return RunRecord{}, false
	}
	record, err := unmarshalRecord(data)
	if err != nil {
		s.logger.Error(err, "corrupt run record", "run", id)
		return RunRecord{}, false
	}
	return record, true
}

func (s *Runs) List() []RunRecord {
	var records []RunRecord
	for id, data := range s.cache.list() {
		record, err := unmarshalRecord(data)
		if err != nil {
			s.logger.Error(err, "corrupt run record", "run", id)
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records
}
