package types

// Document is one source file as produced by a repository loader.
// It is immutable once handed to the pipeline.
type Document struct {
	Path     string         `json:"path"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SemanticRole describes the syntactic construct a chunk was carved from.
type SemanticRole string

const (
	RoleFunction SemanticRole = "function"
	RoleClass    SemanticRole = "class"
	RoleRoute    SemanticRole = "route"
	RoleBlock    SemanticRole = "block"
	RoleNone     SemanticRole = "none"
)

// SplitStrategy records which splitter produced a chunk.
type SplitStrategy string

const (
	// SplitAST marks chunks aligned to syntax-tree unit boundaries.
	SplitAST SplitStrategy = "ast"
	// SplitToken marks chunks from whole-file token windowing (no parser).
	SplitToken SplitStrategy = "token"
	// SplitFallback marks fragments of a semantic unit that exceeded the
	// token ceiling and was re-divided.
	SplitFallback SplitStrategy = "fallback"
	// SplitRechunked marks fragments produced at embed time when a chunk
	// exceeded the embedding provider's input ceiling.
	SplitRechunked SplitStrategy = "rechunked"
)

// ChunkMetadata carries everything the index and the context builder need to
// know about a chunk besides its text.
type ChunkMetadata struct {
	Source        string        `json:"source"`
	TokenCount    int           `json:"token_count"`
	SpanHash      string        `json:"span_hash"`
	Role          SemanticRole  `json:"role"`
	UnitName      string        `json:"unit_name,omitempty"`
	CompleteBlock bool          `json:"complete_block"`
	Strategy      SplitStrategy `json:"strategy"`
	FileType      string        `json:"file_type"`
	Module        string        `json:"module,omitempty"`
}

// Chunk is the atomic embeddable and retrievable unit.
type Chunk struct {
	Content string        `json:"content"`
	Meta    ChunkMetadata `json:"metadata"`
}

// SearchMatch is one scored hit returned by the search orchestrator.
// Scores are normalized to [0,1].
type SearchMatch struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// SourceAnalysis summarizes where retrieved context came from.
type SourceAnalysis struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// ContextBundle is the assembled, bounded context handed to the response
// generator, built once per query and consumed once.
type ContextBundle struct {
	Context  string         `json:"context"`
	Analysis SourceAnalysis `json:"source_analysis"`
	Sources  []string       `json:"sources_breakdown"`
}

// HasContext reports whether any retrieved content made it into the bundle.
func (b *ContextBundle) HasContext() bool {
	return b != nil && b.Context != "" && b.Analysis.Total > 0
}

// ConversationTurn is one prior prompt/response pair, supplied by an
// external conversation-history provider.
type ConversationTurn struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}
