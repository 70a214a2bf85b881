// Package llm provides completion clients for the providers sasbridge can
// talk to. All clients satisfy Client; callers pick one through NewClient
// and stay provider-agnostic.
package llm

import "context"

// Client defines the interface for completion providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
