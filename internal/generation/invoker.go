package generation

import "context"

// Result is the normalized response of a model invocation.
type Result struct {
	// Text is the generated completion text.
	Text string

	// TokensUsed is the total token count the generation service reported
	// for the request, or zero when the service omits usage metadata.
	TokensUsed int
}

// Invoker defines the interface for calling an external generation service.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
type Invoker interface {
	// Invoke sends the prompt to the generation service with the given
	// token budget and returns the normalized result.
	//
	// Every returned error wraps either ErrTransient (rate limits, network
	// timeouts, service-side outages) or ErrPermanent (malformed requests,
	// authentication failures, safety blocks, unusable responses). Callers
	// rely on this classification to decide whether to retry.
	Invoke(ctx context.Context, prompt string, maxTokens int32) (*Result, error)
}
