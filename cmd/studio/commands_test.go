// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTreeWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["generate"])
	assert.True(t, names["diagnostics"])
	assert.True(t, names["profile"])
}

func TestGenerateRequiresTranscriptFlag(t *testing.T) {
	flag := generateCmd.Flags().Lookup("transcript")
	require.NotNil(t, flag)
	required := flag.Annotations[cobra.BashCompOneRequiredFlag]
	require.NotEmpty(t, required)
	assert.Equal(t, "true", required[0])
}

func TestGenerateFlagDefaults(t *testing.T) {
	assert.Equal(t, "gpt-4o", generateCmd.Flags().Lookup("model").DefValue)
	assert.Equal(t, "30", generateCmd.Flags().Lookup("rpm").DefValue)
	assert.Equal(t, "info", generateCmd.Flags().Lookup("log-level").DefValue)
}
