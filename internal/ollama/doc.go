// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// Two operations are used by the router:
//
//   - CompleteJSON: a non-streaming /api/chat call with format "json", used
//     as a completion backend by the routing reasoner
//   - Embed: an /api/embeddings call, used by the retrieval embedder
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:    "http://127.0.0.1:11434",
//	    ChatModel:  "qwen2.5:7b",
//	    EmbedModel: "nomic-embed-text",
//	})
//	raw, err := client.CompleteJSON(ctx, systemPrompt, userPrompt)
//	vec, err := client.Embed(ctx, "proposta da Acme")
//
// Failures are *ClientError values; IsNotRunning, IsTimeout and
// IsModelNotFound classify them.
package ollama
