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
	"sync"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Route names the provider, model, and temperature serving one
// (task, route kind) pair.
type Route struct {
	Provider    string
	Model       string
	Temperature float32
}

// RoutingTable maps (task, route kind) to routes and tracks which
// providers have a configured client. It is one of the two pieces of
// shared mutable state in the engine and is safe for concurrent use.
type RoutingTable struct {
	mu       sync.RWMutex
	routes   map[routeKey]Route
	fallback Route
	clients  map[string]Client
}

type routeKey struct {
	task task.Task
	kind task.RouteKind
}

// NewRoutingTable creates a table whose every route resolves to the
// heuristic provider until providers are registered.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		routes:   make(map[routeKey]Route),
		fallback: Route{Provider: ProviderHeuristic},
		clients:  make(map[string]Client),
	}
}

// RegisterClient makes a provider available and, when the table still
// points at the heuristic fallback, promotes it to the default route.
func (rt *RoutingTable) RegisterClient(client Client) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.clients[client.Name()] = client
	if rt.fallback.Provider == ProviderHeuristic {
		rt.fallback = Route{Provider: client.Name()}
	}
}

// SetRoute pins a specific route for a (task, kind) pair.
func (rt *RoutingTable) SetRoute(t task.Task, kind task.RouteKind, route Route) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[routeKey{task: t, kind: kind}] = route
}

// SetDefault replaces the fallback route used when no pin exists.
func (rt *RoutingTable) SetDefault(route Route) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fallback = route
}

// Route resolves the route for a (task, kind) pair.
func (rt *RoutingTable) Route(t task.Task, kind task.RouteKind) Route {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if r, ok := rt.routes[routeKey{task: t, kind: kind}]; ok {
		return r
	}
	return rt.fallback
}

// IsConfigured reports whether a provider has a registered client. The
// heuristic provider is always "configured": it needs no credentials.
func (rt *RoutingTable) IsConfigured(provider string) bool {
	if provider == ProviderHeuristic {
		return true
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.clients[provider]
	return ok
}

// Client returns the registered client for a provider.
func (rt *RoutingTable) Client(provider string) (Client, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.clients[provider]
	return c, ok
}
