package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/assembler"
	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/generation"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// TaskTypeAIProcessing is the job name for chat-style model invocations
// enriched with purchased skill-pack content.
const TaskTypeAIProcessing = "ai_processing"

// skillPackContextHeader separates the user's message from the appended
// skill-pack content in the prompt.
const skillPackContextHeader = "\n\nSkill Pack Context:\n"

// Common errors
var (
	ErrNilAssembler      = errors.New("assembler cannot be nil")
	ErrNilInvoker        = errors.New("invoker cannot be nil")
	ErrNilSessionStore   = errors.New("session store cannot be nil")
	ErrNilLogger         = errors.New("logger cannot be nil")
	ErrEmptyAIMessage    = errors.New("ai request message cannot be empty")
	ErrEmptyAISessionID  = errors.New("ai request session ID cannot be empty")

	// ErrMessagePersistence marks a failure to persist the assistant
	// message after a successful model call. It is distinguishable from a
	// model failure so the caller knows generated text was produced but
	// could not be recorded.
	ErrMessagePersistence = errors.New("failed to persist assistant message")
)

// ContextAssembler resolves skill-pack IDs into a single context block.
type ContextAssembler interface {
	Assemble(ctx context.Context, ids []uuid.UUID) (*assembler.Context, error)
}

// AIRequestPayload is the execution payload of an ai_processing job.
type AIRequestPayload struct {
	SessionID    uuid.UUID   `json:"session_id"`
	Message      string      `json:"message"`
	SkillPackIDs []uuid.UUID `json:"skill_pack_ids,omitempty"`
}

// Validate checks the payload for required fields.
func (p *AIRequestPayload) Validate() error {
	if p.SessionID == uuid.Nil {
		return ErrEmptyAISessionID
	}
	if p.Message == "" {
		return ErrEmptyAIMessage
	}
	return nil
}

// AIResult is the result blob recorded on the ledger when an
// ai_processing job completes.
type AIResult struct {
	MessageID      uuid.UUID   `json:"message_id"`
	Text           string      `json:"text"`
	TokensUsed     int         `json:"tokens_used"`
	SkillPacksUsed []uuid.UUID `json:"skill_packs_used"`
}

// AIProcessingHandler executes ai_processing jobs: it assembles purchased
// skill-pack content into the prompt, invokes the generation service, and
// appends the generated text as an assistant message to the originating
// session.
type AIProcessingHandler struct {
	assembler ContextAssembler
	invoker   generation.Invoker
	sessions  store.SessionStore
	maxTokens int32
	logger    *slog.Logger
}

// NewAIProcessingHandler creates a new handler for ai_processing jobs.
func NewAIProcessingHandler(
	contextAssembler ContextAssembler,
	invoker generation.Invoker,
	sessions store.SessionStore,
	maxTokens int32,
	logger *slog.Logger,
) (*AIProcessingHandler, error) {
	if contextAssembler == nil {
		return nil, ErrNilAssembler
	}
	if invoker == nil {
		return nil, ErrNilInvoker
	}
	if sessions == nil {
		return nil, ErrNilSessionStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &AIProcessingHandler{
		assembler: contextAssembler,
		invoker:   invoker,
		sessions:  sessions,
		maxTokens: maxTokens,
		logger:    logger.With("job_name", TaskTypeAIProcessing),
	}, nil
}

// Name returns the job name this handler executes.
func (h *AIProcessingHandler) Name() string {
	return TaskTypeAIProcessing
}

// Handle runs one ai_processing job end to end.
func (h *AIProcessingHandler) Handle(
	ctx context.Context,
	job *queue.Job,
) (json.RawMessage, error) {
	var payload AIRequestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// An undecodable payload will never decode on retry.
		return nil, fmt.Errorf("%w: invalid ai_processing payload: %v", generation.ErrPermanent, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrPermanent, err)
	}

	logger := h.logger.With("task_id", job.TaskID, "session_id", payload.SessionID)

	prompt := payload.Message
	var usedPacks []uuid.UUID

	if len(payload.SkillPackIDs) > 0 {
		assembled, err := h.assembler.Assemble(ctx, payload.SkillPackIDs)
		if err != nil {
			logger.Error("failed to assemble skill pack context", "error", err)
			return nil, err
		}

		if assembled.Text != "" {
			prompt += skillPackContextHeader + assembled.Text
		}
		usedPacks = assembled.UsedIDs

		logger.Debug("assembled skill pack context",
			"requested_packs", len(payload.SkillPackIDs),
			"resolved_packs", len(usedPacks))
	}

	result, err := h.invoker.Invoke(ctx, prompt, h.maxTokens)
	if err != nil {
		logger.Error("model invocation failed", "error", err)
		return nil, err
	}

	message, err := h.sessions.AppendMessage(
		ctx, payload.SessionID, result.Text, domain.MessageRoleAssistant,
	)
	if err != nil {
		logger.Error("failed to append assistant message", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMessagePersistence, err)
	}

	logger.Info("ai processing completed",
		"message_id", message.ID,
		"tokens_used", result.TokensUsed)

	resultBlob, err := json.Marshal(AIResult{
		MessageID:      message.ID,
		Text:           result.Text,
		TokensUsed:     result.TokensUsed,
		SkillPacksUsed: usedPacks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ai result: %w", err)
	}

	return resultBlob, nil
}

// Ensure AIProcessingHandler implements Handler
var _ Handler = (*AIProcessingHandler)(nil)
