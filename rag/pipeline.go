package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

// Namespace derives the vector-store namespace for one user's view of a
// repository.
func Namespace(userID, owner, repo string) string {
	parts := []string{}
	for _, p := range []string{userID, owner, repo} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

// PipelineConfig bounds one query.
type PipelineConfig struct {
	// RequestTimeout is the overall deadline for search plus generation.
	// Zero means 30s.
	RequestTimeout time.Duration
}

// QueryResult is the uniform shape every query returns. Success false with
// Error set replaces thrown errors; callers never see a panic or a raw error
// from the pipeline.
type QueryResult struct {
	Success        bool      `json:"success"`
	RAGEnabled     bool      `json:"rag_enabled"`
	Response       string    `json:"response,omitempty"`
	Error          string    `json:"error,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueryPipeline is the query-time façade: search, build context, generate.
// A nil search orchestrator means no vector store is configured and every
// prompt takes the standard path.
type QueryPipeline struct {
	cfg       PipelineConfig
	search    *SearchOrchestrator
	builder   *ContextBuilder
	generator *ResponseGenerator
	logger    *zap.Logger
}

func NewQueryPipeline(
	cfg PipelineConfig,
	search *SearchOrchestrator,
	builder *ContextBuilder,
	generator *ResponseGenerator,
	logger *zap.Logger,
) *QueryPipeline {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPipeline{
		cfg:       cfg,
		search:    search,
		builder:   builder,
		generator: generator,
		logger:    logger.With(zap.String("component", "query_pipeline")),
	}
}

// Respond answers prompt for one conversation. With a configured vector
// store it retrieves context from namespace first; when retrieval finds
// nothing, or no store exists, it answers without context. A failed
// contextual generation falls back to the standard path before giving up.
func (p *QueryPipeline) Respond(ctx context.Context, conversationID, namespace, prompt string, history []types.ConversationTurn) QueryResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	if p.search == nil {
		return p.standard(ctx, conversationID, prompt, history)
	}

	matches := p.search.Search(ctx, namespace, prompt)
	if len(matches) == 0 {
		p.logger.Debug("no matches, taking standard path",
			zap.String("namespace", namespace))
		return p.standard(ctx, conversationID, prompt, history)
	}

	bundle := p.builder.FormatContext(matches)
	if !bundle.HasContext() {
		return p.standard(ctx, conversationID, prompt, history)
	}

	content, err := p.generator.GenerateWithContext(ctx, prompt, bundle, history)
	if err != nil {
		p.logger.Warn("contextual generation failed, falling back",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return p.standard(ctx, conversationID, prompt, history)
	}

	return QueryResult{
		Success:        true,
		RAGEnabled:     true,
		Response:       content,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

func (p *QueryPipeline) standard(ctx context.Context, conversationID, prompt string, history []types.ConversationTurn) QueryResult {
	content, err := p.generator.GenerateStandard(ctx, prompt, history)
	if err != nil {
		p.logger.Error("standard generation failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return QueryResult{
			Success:        false,
			Error:          fmt.Sprintf("response generation failed: %v", err),
			ConversationID: conversationID,
			Timestamp:      time.Now().UTC(),
		}
	}
	return QueryResult{
		Success:        true,
		RAGEnabled:     false,
		Response:       content,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}
