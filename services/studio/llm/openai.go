// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts an OpenAI-compatible chat completion API to the
// engine's Client contract. Any endpoint speaking the same protocol
// (vLLM, Ollama's compat layer, gateways) works via base URL override.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// ErrMissingAPIKey indicates no credentials were found.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")

// NewOpenAIClientFromEnv builds a client from OPENAI_API_KEY and the
// optional OPENAI_BASE_URL override.
func NewOpenAIClientFromEnv(logger *slog.Logger) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewOpenAIClient(apiKey, os.Getenv("OPENAI_BASE_URL"), logger), nil
}

// NewOpenAIClient builds a client with explicit credentials.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	c.logger.Debug("openai completion", "model", req.Model, "max_tokens", req.MaxTokens)
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: empty choices for model %s", req.Model)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	usage.EstimatedCostUSD = estimateCostUSD(req.Model, usage)

	return &Response{
		Output: resp.Choices[0].Message.Content,
		Usage:  usage,
	}, nil
}

// per-1M-token USD rates; unknown models estimate at the cheapest tier.
var costTable = map[string][2]float64{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4.1":     {2.00, 8.00},
}

func estimateCostUSD(model string, u Usage) float64 {
	rates, ok := costTable[model]
	if !ok {
		rates = costTable["gpt-4o-mini"]
	}
	return float64(u.PromptTokens)/1e6*rates[0] + float64(u.CompletionTokens)/1e6*rates[1]
}
