// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the minimal language-model contract the understanding
// engine consumes, and an Ollama client implementing it. The engine treats
// every reply as untrusted free text; timeouts and retries live here, not
// in the callers.
package llm

import "context"

// ChatMessage is one message in a chat exchange.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend is the contract the classifier and extractor consume: a boolean
// availability probe and a best-effort chat call.
type Backend interface {
	// IsAvailable reports whether the backend can currently serve a chat
	// call. A false return routes callers to their deterministic fallback.
	IsAvailable(ctx context.Context) bool

	// Chat sends the conversation and returns the model's reply text.
	Chat(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
}
