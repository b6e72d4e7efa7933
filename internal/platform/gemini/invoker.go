package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/supermodelai/supermodel-api/internal/config"
	"github.com/supermodelai/supermodel-api/internal/generation"
)

// Invoker implements the generation.Invoker interface using Google's
// Gemini API.
type Invoker struct {
	// logger is used for structured logging
	logger *slog.Logger

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewInvoker creates a new Invoker with the provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key and model name
//
// Returns:
//   - A properly initialized Invoker or an error if initialization fails
func NewInvoker(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Invoker, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Invoker{
		logger: logger.With("component", "gemini_invoker"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Invoke sends the prompt to the Gemini API and returns the normalized
// result. All failures are classified as transient or permanent per the
// generation package contract; retrying is the caller's responsibility.
func (g *Invoker) Invoke(
	ctx context.Context,
	prompt string,
	maxTokens int32,
) (*generation.Result, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrPermanent)
	}

	g.logger.DebugContext(ctx, "calling Gemini API",
		"model", g.model,
		"prompt_length", len(prompt),
		"max_tokens", maxTokens)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			MaxOutputTokens: maxTokens,
		})
	if err != nil {
		classified := ClassifyAPIError(err)
		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"error", err,
			"transient", generation.IsTransient(classified))
		return nil, classified
	}

	result, err := normalizeResponse(resp)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini response unusable", "error", err)
		return nil, err
	}

	g.logger.DebugContext(ctx, "Gemini API call successful",
		"text_length", len(result.Text),
		"tokens_used", result.TokensUsed)

	return result, nil
}

// ClassifyAPIError maps a Gemini client error onto the generation error
// taxonomy. Rate limits and service-side failures are transient; request
// and authentication failures are permanent. Errors that carry no HTTP
// status (network resets, timeouts) are treated as transient.
func ClassifyAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: rate limited: %v", generation.ErrTransient, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: service error (%d): %v", generation.ErrTransient, apiErr.Code, err)
		default:
			return fmt.Errorf("%w: request rejected (%d): %v", generation.ErrPermanent, apiErr.Code, err)
		}
	}

	return fmt.Errorf("%w: %v", generation.ErrTransient, err)
}

// normalizeResponse extracts the generated text and token usage from a raw
// API response, rejecting responses that carry no usable content.
func normalizeResponse(resp *genai.GenerateContentResponse) (*generation.Result, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: %w: nil response", generation.ErrPermanent, generation.ErrInvalidResponse)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: %w: no candidates", generation.ErrPermanent, generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: %w", generation.ErrPermanent, generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: %w: empty content", generation.ErrPermanent, generation.ErrInvalidResponse)
	}

	result := &generation.Result{Text: text}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	return result, nil
}
