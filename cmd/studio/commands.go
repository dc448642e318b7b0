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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianStudio/pkg/logging"
	"github.com/AleutianAI/AleutianStudio/services/studio/diagnostics"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/pipeline"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
)

var (
	rootCmd = &cobra.Command{
		Use:   "studio",
		Short: "Turn podcast transcripts into scored marketing artifacts",
		Long: `Studio runs a transcript through analysis, clip selection, and
drafting for newsletter, post, and microblog channels. Every artifact is
validated against the transcript evidence, scored, and refined before it
is published to the output file.`,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate all artifacts for one transcript",
		Long: `Reads a transcript JSON file (an array of timed segments), runs the
full generation pipeline, and writes the artifacts with their scores as
JSON. Without OPENAI_API_KEY the run stays fully offline and produces
deterministic fallback artifacts.`,
		Run: runGenerateCommand,
	}
	transcriptPath string
	profilePath    string
	outPath        string
	qualityFlag    string
	modelFlag      string
	diagDir        string
	requestsPerMin int
	logLevel       string
	logJSON        bool

	diagnosticsCmd = &cobra.Command{
		Use:   "diagnostics",
		Short: "Inspect recorded generation runs",
	}
	diagListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent task records, newest first",
		Run:   runDiagListCommand,
	}
	diagListLimit int
	diagPruneCmd  = &cobra.Command{
		Use:   "prune",
		Short: "Delete task records older than the retention window",
		Run:   runDiagPruneCommand,
	}

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Manage generation profiles",
	}
	profileInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default profile YAML to a file",
		Args:  cobra.ExactArgs(1),
		Run:   runProfileInitCommand,
	}
)

func init() {
	generateCmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Path to the transcript JSON file (required)")
	generateCmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Path to a profile YAML file (default: built-in profile)")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path for the artifacts JSON (default: stdout)")
	generateCmd.Flags().StringVar(&qualityFlag, "quality", "", "Override the profile quality mode: standard or max")
	generateCmd.Flags().StringVar(&modelFlag, "model", "gpt-4o", "Model for all routes when a provider is configured")
	generateCmd.Flags().StringVar(&diagDir, "diag-dir", "", "Diagnostics directory (default: ~/.aleutianstudio/diagnostics)")
	generateCmd.Flags().IntVar(&requestsPerMin, "rpm", 30, "Completion request rate limit per minute")
	generateCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	generateCmd.Flags().BoolVar(&logJSON, "log-json", false, "Log as JSON instead of text")
	_ = generateCmd.MarkFlagRequired("transcript")

	diagnosticsCmd.PersistentFlags().StringVar(&diagDir, "diag-dir", "", "Diagnostics directory (default: ~/.aleutianstudio/diagnostics)")
	diagListCmd.Flags().IntVarP(&diagListLimit, "limit", "n", 20, "Maximum records to list")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	diagnosticsCmd.AddCommand(diagListCmd)
	diagnosticsCmd.AddCommand(diagPruneCmd)
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileInitCmd)
}

func runGenerateCommand(cmd *cobra.Command, args []string) {
	logger, closeLogs, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "studio",
		JSON:    logJSON,
	})
	if err != nil {
		log.Fatalf("Error setting up logging: %v", err)
	}
	defer closeLogs()

	prof := profile.Default()
	if profilePath != "" {
		prof, err = profile.Load(profilePath)
		if err != nil {
			log.Fatalf("Error loading profile: %v", err)
		}
	}
	if qualityFlag != "" {
		prof.Quality = profile.QualityMode(qualityFlag)
	}
	if err := profile.Validate(prof); err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}

	segments, err := transcript.Load(transcriptPath)
	if err != nil {
		log.Fatalf("Error loading transcript: %v", err)
	}

	routes := llm.NewRoutingTable()
	client, err := llm.NewOpenAIClientFromEnv(logger)
	switch {
	case err == nil:
		routes.RegisterClient(client)
		routes.SetDefault(llm.Route{Provider: client.Name(), Model: modelFlag, Temperature: 0.7})
		for _, t := range task.All() {
			routes.SetRoute(t, task.RouteJudge, llm.Route{Provider: client.Name(), Model: modelFlag, Temperature: 0.1})
		}
		fmt.Fprintf(os.Stderr, "Using provider %s with model %s\n", client.Name(), modelFlag)
	case errors.Is(err, llm.ErrMissingAPIKey):
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY not set, running offline with deterministic fallbacks")
	default:
		log.Fatalf("Error configuring provider: %v", err)
	}

	sink, err := diagnostics.NewFileSink(diagDir, logger)
	if err != nil {
		log.Fatalf("Error opening diagnostics directory: %v", err)
	}

	engine := pipeline.New(pipeline.Config{
		Profile: prof,
		Routes:  routes,
		Limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), 2),
		Sink:    sink,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	arts, err := engine.Run(ctx, segments)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	data, err := json.MarshalIndent(arts, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding artifacts: %v", err)
	}
	if outPath == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(outPath, data, 0o640); err != nil {
		log.Fatalf("Error writing output: %v", err)
	}
	fmt.Printf("Wrote %d artifacts to %s (run %s)\n", len(arts.Scores), outPath, arts.RunID)
}

func runDiagListCommand(cmd *cobra.Command, args []string) {
	sink, err := diagnostics.NewFileSink(diagDir, logging.Default())
	if err != nil {
		log.Fatalf("Error opening diagnostics directory: %v", err)
	}
	paths, err := sink.List(diagListLimit)
	if err != nil {
		log.Fatalf("Error listing records: %v", err)
	}
	if len(paths) == 0 {
		fmt.Println("No task records found.")
		return
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		var r diagnostics.TaskRecord
		if err := json.Unmarshal(data, &r); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		marker := " "
		if r.FallbackUsed {
			marker = "F"
		}
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		fmt.Printf("%s  %s  %-10s  composite %.2f  display %.2f  run %s\n",
			marker, r.StartedAt.Format("2006-01-02 15:04:05"), r.Task, r.Composite, r.Display, runID)
	}
}

func runDiagPruneCommand(cmd *cobra.Command, args []string) {
	sink, err := diagnostics.NewFileSink(diagDir, logging.Default())
	if err != nil {
		log.Fatalf("Error opening diagnostics directory: %v", err)
	}
	removed, err := sink.Prune()
	if err != nil {
		log.Fatalf("Error pruning records: %v", err)
	}
	fmt.Printf("Removed %d expired task records.\n", removed)
}

func runProfileInitCommand(cmd *cobra.Command, args []string) {
	data, err := yaml.Marshal(profile.Default())
	if err != nil {
		log.Fatalf("Error encoding profile: %v", err)
	}
	if err := os.WriteFile(args[0], data, 0o640); err != nil {
		log.Fatalf("Error writing profile: %v", err)
	}
	fmt.Printf("Wrote default profile to %s\n", args[0])
}
