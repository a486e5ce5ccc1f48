// Package storage persists the crawl manifest: one record per crawled
// page, from which the summary report and re-run diagnostics are derived.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/services/crawler"
)

// ManifestDB is a Badger-backed implementation of crawler.ManifestStore
type ManifestDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewManifestDB opens the manifest database at path
func NewManifestDB(path string, logger arbor.ILogger) (*ManifestDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // arbor handles logging

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Manifest database opened")

	return &ManifestDB{
		store:  store,
		logger: logger,
	}, nil
}

// RecordPage upserts the record for a crawled page, keyed by canonical URL
func (m *ManifestDB) RecordPage(record *crawler.PageRecord) error {
	if record.URL == "" {
		return fmt.Errorf("page record URL is required")
	}
	if err := m.store.Upsert(record.URL, record); err != nil {
		return fmt.Errorf("failed to save page record: %w", err)
	}
	return nil
}

// GetPage returns the record for a canonical URL
func (m *ManifestDB) GetPage(url string) (*crawler.PageRecord, error) {
	var record crawler.PageRecord
	if err := m.store.Get(url, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("page record not found: %s", url)
		}
		return nil, fmt.Errorf("failed to get page record: %w", err)
	}
	return &record, nil
}

// PagesByStatus returns all records for a run with the given status
func (m *ManifestDB) PagesByStatus(runID string, status crawler.PageStatus) ([]crawler.PageRecord, error) {
	var records []crawler.PageRecord
	err := m.store.Find(&records, badgerhold.Where("RunID").Eq(runID).And("Status").Eq(status))
	if err != nil {
		return nil, fmt.Errorf("failed to find page records: %w", err)
	}
	return records, nil
}

// CountPages returns the number of records for a run
func (m *ManifestDB) CountPages(runID string) (int, error) {
	count, err := m.store.Count(&crawler.PageRecord{}, badgerhold.Where("RunID").Eq(runID))
	if err != nil {
		return 0, fmt.Errorf("failed to count page records: %w", err)
	}
	return int(count), nil
}

// Close closes the manifest database
func (m *ManifestDB) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
