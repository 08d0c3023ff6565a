// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for c4route.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Sections
//
//   - routing: reasoner switch, confidence threshold, timeouts and rate limits
//   - reasoner: model provider behind the reasoner (openai, ollama, none)
//   - embedding: embedder provider and query-embedding cache
//   - store: document store driver (postgres, sqlite)
//   - retrieval: similarity floor
//   - log: level and format
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (C4ROUTE_*)
//   - ~/.c4route/config.toml
//   - ~/.c4route/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	threshold := cfg.Routing.ConfidenceThreshold
package config
