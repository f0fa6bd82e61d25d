package rag

import (
	"context"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/internal/metrics"
	"github.com/BaSui01/ragflow/llm"
	"github.com/BaSui01/ragflow/queue"
	"github.com/BaSui01/ragflow/types"
)

// ResponseGeneratorConfig tunes generation.
type ResponseGeneratorConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
	// MaxHistoryTurns caps how many prior turns enter the message list.
	// Zero means 10.
	MaxHistoryTurns int
}

// generalQuestionMarkers suggest the prompt is about programming at large
// rather than this repository.
var generalQuestionMarkers = []string{
	"what is", "what are", "how do i", "explain", "difference between",
	"best practice", "in general",
}

// fallbackPhrases read as the model ignoring context it was given.
var fallbackPhrases = []string{
	"i don't have access to",
	"i cannot see your code",
	"without seeing the code",
	"i don't have enough context",
}

// pathTokenRe matches file-path-looking tokens in a response, used by the
// advisory context check.
var pathTokenRe = regexp.MustCompile(`[\w./-]+\.(?:go|js|jsx|ts|tsx|py|java|rb|rs|c|h|cpp|hpp|cs|php|kt|swift|scala|sh|sql|md|ya?ml|json|toml)\b`)

// ResponseGenerator turns prompts into answers through the LLM provider,
// optionally grounded in a retrieved context bundle. All provider calls go
// through the rate-limited queue.
type ResponseGenerator struct {
	cfg      ResponseGeneratorConfig
	provider llm.Provider
	queue    *queue.RateLimitedQueue
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewResponseGenerator(
	cfg ResponseGeneratorConfig,
	provider llm.Provider,
	q *queue.RateLimitedQueue,
	collector *metrics.Collector,
	logger *zap.Logger,
) *ResponseGenerator {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector("ragflow", prometheus.NewRegistry(), logger)
	}
	return &ResponseGenerator{
		cfg:      cfg,
		provider: provider,
		queue:    q,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "response_generator")),
	}
}

// GenerateWithContext answers prompt grounded in bundle. After generation it
// runs the advisory context check, which logs and counts but never changes
// the returned content.
func (g *ResponseGenerator) GenerateWithContext(ctx context.Context, prompt string, bundle types.ContextBundle, history []types.ConversationTurn) (string, error) {
	messages := g.buildMessages(g.systemPrompt(prompt, &bundle), prompt, history)
	content, err := g.invoke(ctx, messages)
	if err != nil {
		return "", err
	}

	g.metrics.RecordResponse("contextual")
	g.validateContextUsage(content, bundle, prompt)
	return content, nil
}

// GenerateStandard answers prompt without retrieval context.
func (g *ResponseGenerator) GenerateStandard(ctx context.Context, prompt string, history []types.ConversationTurn) (string, error) {
	messages := g.buildMessages(g.systemPrompt(prompt, nil), prompt, history)
	content, err := g.invoke(ctx, messages)
	if err != nil {
		return "", err
	}

	g.metrics.RecordResponse("standard")
	return content, nil
}

// systemPrompt picks instructions by whether retrieval found anything and
// whether the question reads as general or application-specific.
func (g *ResponseGenerator) systemPrompt(prompt string, bundle *types.ContextBundle) string {
	var b strings.Builder
	b.WriteString("You are a senior engineer answering questions about a codebase.")

	switch {
	case bundle != nil && bundle.HasContext():
		b.WriteString(" Relevant excerpts from the repository are provided below.")
		b.WriteString(" Ground your answer in them and cite file paths you use.")
		if code := bundle.Analysis.ByType[string(FileTypeCode)]; code > 0 {
			b.WriteString(" Prefer the code excerpts over prose when they disagree.")
		}
		b.WriteString("\n\n## Repository context\n\n")
		b.WriteString(bundle.Context)
	case looksGeneralQuestion(prompt):
		b.WriteString(" Answer from general knowledge; no repository context is needed.")
	default:
		b.WriteString(" No repository context was retrieved for this question.")
		b.WriteString(" Say so when the answer depends on code you cannot see.")
	}
	return b.String()
}

func (g *ResponseGenerator) buildMessages(system, prompt string, history []types.ConversationTurn) []types.Message {
	if len(history) > g.cfg.MaxHistoryTurns {
		history = history[len(history)-g.cfg.MaxHistoryTurns:]
	}

	messages := make([]types.Message, 0, 2*len(history)+2)
	messages = append(messages, types.SystemMessage(system))
	for _, turn := range history {
		messages = append(messages, types.UserMessage(turn.Prompt))
		messages = append(messages, types.AssistantMessage(turn.Response))
	}
	return append(messages, types.UserMessage(prompt))
}

func (g *ResponseGenerator) invoke(ctx context.Context, messages []types.Message) (string, error) {
	res, err := g.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return g.provider.Complete(ctx, &llm.ChatRequest{
			Model:       g.cfg.Model,
			Messages:    messages,
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: g.cfg.Temperature,
		})
	})
	if err != nil {
		return "", err
	}

	resp, ok := res.(*llm.ChatResponse)
	if !ok || resp == nil || resp.Content == "" {
		return "", types.NewError(types.ErrUpstreamError, "provider returned empty completion")
	}
	return resp.Content, nil
}

// validateContextUsage flags responses that cite files absent from the
// context, or that read as generic fallback text while context was in fact
// available. Advisory only: thresholds are heuristic and the response is
// returned unmodified either way.
func (g *ResponseGenerator) validateContextUsage(response string, bundle types.ContextBundle, prompt string) {
	if !bundle.HasContext() {
		return
	}

	lower := strings.ToLower(response)
	for _, phrase := range fallbackPhrases {
		if strings.Contains(lower, phrase) {
			g.metrics.RecordHallucinationFlag()
			g.logger.Warn("response reads as fallback despite available context",
				zap.String("phrase", phrase),
				zap.Int("context_sources", bundle.Analysis.Total))
			return
		}
	}

	var unknown []string
	for _, p := range pathTokenRe.FindAllString(response, -1) {
		if !contextMentionsPath(bundle, p) {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		g.metrics.RecordHallucinationFlag()
		g.logger.Warn("response cites paths absent from retrieved context",
			zap.Strings("paths", unknown))
	}
}

// contextMentionsPath accepts a cited path when the context or source list
// contains it, comparing by basename suffix so `pkg/a.go` matches `a.go`.
func contextMentionsPath(bundle types.ContextBundle, cited string) bool {
	base := cited
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if strings.Contains(bundle.Context, base) {
		return true
	}
	for _, src := range bundle.Sources {
		if strings.HasSuffix(src, base) {
			return true
		}
	}
	return false
}

func looksGeneralQuestion(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, marker := range generalQuestionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
