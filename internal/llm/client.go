// Package llm provides the chat-completion client and the two
// post-processing operations built on it: the reference validity gate and
// the methods+tables summarizer.
//
// Both operations treat the model as an unreliable collaborator. The gate
// defensively parses a JSON-shaped but unverified reply and discards
// anything that fails to validate; the summarizer swallows call failures
// behind a fixed sentinel string so a summary problem can never fail a
// parse.
package llm

import "context"

// Client is a minimal chat-completion interface: one system message, one
// user message, free-text reply. Implementations own transport, retries
// and provider-specific error shaping.
type Client interface {
	// Complete sends the two messages and returns the reply text, trimmed.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model returns the model identifier being used.
	Model() string
}
