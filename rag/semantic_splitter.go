package rag

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

// ErrUnsupportedLanguage reports that no semantic parser exists for a file.
// Callers fall back to token splitting.
var ErrUnsupportedLanguage = types.NewError(types.ErrParseFailure, "no semantic parser for file type")

// SemanticPiece is one chunk-sized slice of a document together with the
// structural facts the splitter learned about it.
type SemanticPiece struct {
	Content       string
	TokenCount    int
	Name          string
	Role          types.SemanticRole
	Strategy      types.SplitStrategy
	CompleteBlock bool
}

type sourceParser func(source string) (preamble string, units []semanticUnit, err error)

var parsersByExtension = map[string]sourceParser{
	".go":  parseGoSource,
	".js":  parseScriptSource,
	".jsx": parseScriptSource,
	".ts":  parseScriptSource,
	".tsx": parseScriptSource,
	".mjs": parseScriptSource,
	".cjs": parseScriptSource,
	".py":  parsePythonSource,
}

// SemanticSplitter chunks source files along declaration boundaries so each
// chunk holds a whole function, class or route where the token budget allows.
// Units over the budget degrade to token windows, and files no parser
// understands are split by tokens alone.
type SemanticSplitter struct {
	tokens *TokenSplitter
	logger *zap.Logger
}

func NewSemanticSplitter(tokens *TokenSplitter, logger *zap.Logger) *SemanticSplitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticSplitter{
		tokens: tokens,
		logger: logger.With(zap.String("component", "semantic_splitter")),
	}
}

// Split parses source by its file extension and returns declaration-aligned
// pieces. The file preamble (package clause, imports, top-level assignments)
// travels with the first piece. Unsupported extensions return
// ErrUnsupportedLanguage; parse failures return an error with code
// ErrParseFailure. Both leave the caller to token-split instead.
func (s *SemanticSplitter) Split(filePath, source string) ([]SemanticPiece, error) {
	parse, ok := parsersByExtension[strings.ToLower(path.Ext(filePath))]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}

	preamble, units, err := parse(source)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, ErrUnsupportedLanguage
	}

	maxTokens := s.tokens.cfg.MaxTokens
	var pieces []SemanticPiece
	for i, unit := range units {
		content := unit.Content
		if i == 0 && preamble != "" {
			content = preamble + "\n\n" + content
		}

		count := s.tokens.counter.Count(content)
		if count <= maxTokens {
			pieces = append(pieces, SemanticPiece{
				Content:       content,
				TokenCount:    count,
				Name:          unit.Name,
				Role:          unit.Role,
				Strategy:      types.SplitAST,
				CompleteBlock: true,
			})
			continue
		}

		// The declaration alone busts the budget; carve it into token
		// windows but keep its identity on every window.
		s.logger.Debug("oversized declaration degraded to token windows",
			zap.String("file", filePath),
			zap.String("unit", unit.Name),
			zap.Int("tokens", count))
		for _, p := range s.tokens.Split(content) {
			pieces = append(pieces, SemanticPiece{
				Content:       p.Content,
				TokenCount:    p.TokenCount,
				Name:          unit.Name,
				Role:          unit.Role,
				Strategy:      types.SplitFallback,
				CompleteBlock: false,
			})
		}
	}
	return pieces, nil
}

// SplitDocument splits with the semantic parser when one applies and falls
// back to plain token windows otherwise. It never fails: worst case the whole
// document comes back as token-strategy pieces.
func (s *SemanticSplitter) SplitDocument(filePath, source string) []SemanticPiece {
	pieces, err := s.Split(filePath, source)
	if err == nil {
		return pieces
	}

	if types.GetErrorCode(err) == types.ErrParseFailure && err != ErrUnsupportedLanguage {
		s.logger.Warn("semantic parse failed, falling back to token split",
			zap.String("file", filePath),
			zap.Error(err))
	}

	var out []SemanticPiece
	for _, p := range s.tokens.Split(source) {
		out = append(out, SemanticPiece{
			Content:    p.Content,
			TokenCount: p.TokenCount,
			Role:       types.RoleNone,
			Strategy:   types.SplitToken,
		})
	}
	return out
}
