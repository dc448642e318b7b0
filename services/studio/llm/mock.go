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
	"sync"
	"time"
)

// MockClient is a scripted Client for tests.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	// name is the provider name reported by Name().
	name string

	// script is consumed front to back; when exhausted, defaultOutput
	// is returned.
	script []scripted

	// defaultOutput is returned when the script is exhausted.
	defaultOutput string

	// responseFunc, when set, overrides the script entirely.
	responseFunc func(*Request) (*Response, error)

	// calls records every request for assertions.
	calls []MockCall
}

type scripted struct {
	output string
	err    error
}

// MockCall records one Complete invocation.
type MockCall struct {
	Request   *Request
	Timestamp time.Time
}

// NewMockClient creates a mock reporting the given provider name.
func NewMockClient(name string) *MockClient {
	return &MockClient{
		name:          name,
		defaultOutput: `{}`,
	}
}

// QueueOutput appends a successful scripted response.
func (c *MockClient) QueueOutput(output string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, scripted{output: output})
	return c
}

// QueueError appends a scripted failure.
func (c *MockClient) QueueError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, scripted{err: err})
	return c
}

// WithDefaultOutput sets the response used after the script runs out.
func (c *MockClient) WithDefaultOutput(output string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultOutput = output
	return c
}

// WithResponseFunc routes every call through fn.
func (c *MockClient) WithResponseFunc(fn func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = fn
	return c
}

// Calls returns a copy of the recorded calls.
func (c *MockClient) Calls() []MockCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MockCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Name implements Client.
func (c *MockClient) Name() string { return c.name }

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls = append(c.calls, MockCall{Request: req, Timestamp: time.Now()})
	fn := c.responseFunc
	var next *scripted
	if fn == nil && len(c.script) > 0 {
		s := c.script[0]
		c.script = c.script[1:]
		next = &s
	}
	defaultOutput := c.defaultOutput
	c.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if next != nil {
		if next.err != nil {
			return nil, next.err
		}
		return &Response{Output: next.output, Usage: Usage{PromptTokens: 50, CompletionTokens: 50, TotalTokens: 100}}, nil
	}
	return &Response{Output: defaultOutput, Usage: Usage{PromptTokens: 50, CompletionTokens: 50, TotalTokens: 100}}, nil
}
