package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// StagingStore is an append-only, line-delimited JSON log of records found in
// the current scan unit. Appends are synchronous and synced to disk; the log
// is truncated once its contents have been merged.
type StagingStore struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
}

// NewStagingStore creates a staging log at dir/file.
func NewStagingStore(dir, file string, logger *zap.Logger) *StagingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StagingStore{path: filepath.Join(dir, file), logger: logger}
}

// Path returns the staging log path.
func (s *StagingStore) Path() string {
	return s.path
}

// Append writes one record as a single line and syncs it. Safe for concurrent use.
func (s *StagingStore) Append(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal staged record %d: %w", r.ID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open staging log: %w", err)
		}
		s.file = f
	}

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append staged record %d: %w", r.ID, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync staging log: %w", err)
	}
	return nil
}

// Drain reads every staged record in append order. Lines that do not parse
// are skipped and logged; a missing log yields no records.
func (s *StagingStore) Drain() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // path is built from configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read staging log: %w", err)
	}

	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			s.logger.Warn("Skipping unparseable staged line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to scan staging log: %w", err)
	}
	return records, nil
}

// Clear truncates the staging log.
func (s *StagingStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if err := s.file.Truncate(0); err != nil {
			return fmt.Errorf("failed to truncate staging log: %w", err)
		}
		return s.file.Sync()
	}

	if err := os.Truncate(s.path, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate staging log: %w", err)
	}
	return nil
}

// Close releases the open log handle.
func (s *StagingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
