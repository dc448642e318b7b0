// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestDefaultReturnsUsableLogger(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
	// Must not panic.
	logger.Info("test message", "key", "value")
}

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "studio-test",
		Quiet:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("file entry", "task", "clips")
	closer()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "studio-test_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task":"clips"`)
	assert.Contains(t, string(data), `"service":"studio-test"`)
}

func TestNewQuietWithoutFileDiscards(t *testing.T) {
	logger, closer, err := New(Config{Quiet: true})
	require.NoError(t, err)
	defer closer()
	// Discard handler; still must not panic.
	logger.Error("dropped", "err", "boom")
}

func TestNewLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := New(Config{
		Level:  LevelWarn,
		LogDir: dir,
		Quiet:  true,
	})
	require.NoError(t, err)

	logger.Info("filtered out")
	logger.Warn("kept")
	closer()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}
