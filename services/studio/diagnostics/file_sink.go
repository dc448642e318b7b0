// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultRetentionDays is how long records are kept before Prune removes
// them.
const DefaultRetentionDays = 30

// FileSink writes one timestamped JSON file per task record.
//
// # Thread Safety
//
// FileSink uses a mutex so multiple pipeline runs can record
// concurrently.
type FileSink struct {
	baseDir       string
	retentionDays int
	logger        *slog.Logger

	mu sync.Mutex
}

// NewFileSink creates the sink, creating baseDir as needed. An empty
// baseDir defaults to ~/.aleutianstudio/diagnostics.
func NewFileSink(baseDir string, logger *slog.Logger) (*FileSink, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".aleutianstudio", "diagnostics")
	}
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("creating diagnostics directory %s: %w", baseDir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{baseDir: baseDir, retentionDays: DefaultRetentionDays, logger: logger}, nil
}

// Record implements Sink. The write is atomic (temp file + rename) so a
// crash never leaves a partial record. Failures are logged, never
// returned: diagnostics must not fail the pipeline.
func (s *FileSink) Record(record *TaskRecord) {
	if s == nil || record == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		s.logger.Warn("marshaling diagnostic record", "err", err)
		return
	}

	name := fmt.Sprintf("studio-%s-%s-%s.json",
		record.StartedAt.Format("20060102-150405"), record.Task, record.ID[:8])
	path := filepath.Join(s.baseDir, name)

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0640); err != nil {
		s.logger.Warn("writing diagnostic record", "path", path, "err", err)
		return
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		s.logger.Warn("finalizing diagnostic record", "path", path, "err", err)
	}
}

// List returns record paths, newest first, up to limit (0 means all).
func (s *FileSink) List(limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("listing diagnostics directory: %w", err)
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	var files []entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "studio-") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, entry{path: filepath.Join(s.baseDir, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
		if limit > 0 && len(paths) == limit {
			break
		}
	}
	return paths, nil
}

// Prune removes records older than the retention period and returns how
// many were deleted.
func (s *FileSink) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("listing diagnostics directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "studio-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.baseDir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
