package rag

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/tokenizer"
)

// Piece is one window produced by the TokenSplitter. Callers attach full
// chunk metadata; the splitter only knows text and token counts.
type Piece struct {
	Content    string
	TokenCount int
}

// TokenSplitterConfig bounds the splitter's windows in tokens.
type TokenSplitterConfig struct {
	MaxTokens     int
	MinTokens     int
	OverlapTokens int
}

// TokenSplitter carves text into token-bounded windows. Cut points snap
// backward to the nearest boundary (blank line, then newline, then space)
// past a minimum-retention threshold, every window but the last holds at
// least MinTokens tokens, and each window begins with a literal suffix of
// its predecessor of at most OverlapTokens tokens.
type TokenSplitter struct {
	cfg     TokenSplitterConfig
	counter tokenizer.Counter
	logger  *zap.Logger
}

// boundarySeparators in snap priority order.
var boundarySeparators = []string{"\n\n", "\n", " "}

// NewTokenSplitter creates a TokenSplitter.
func NewTokenSplitter(cfg TokenSplitterConfig, counter tokenizer.Counter, logger *zap.Logger) *TokenSplitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.MinTokens < 0 {
		cfg.MinTokens = 0
	}
	if cfg.MinTokens > cfg.MaxTokens {
		cfg.MinTokens = cfg.MaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 4
	}
	return &TokenSplitter{
		cfg:     cfg,
		counter: counter,
		logger:  logger.With(zap.String("component", "token_splitter")),
	}
}

// Split divides text into pieces of at most MaxTokens tokens each.
// Empty or whitespace-only input yields no pieces; input under the ceiling
// (including anything shorter than MinTokens) is returned unmodified as a
// single piece.
func (s *TokenSplitter) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if total := s.counter.Count(text); total <= s.cfg.MaxTokens {
		return []Piece{{Content: text, TokenCount: total}}
	}

	var pieces []Piece
	carry := ""
	remaining := text

	for {
		window := carry + remaining
		if count := s.counter.Count(window); count <= s.cfg.MaxTokens {
			pieces = append(pieces, Piece{Content: window, TokenCount: count})
			break
		}

		offsets := runeOffsets(window)
		cut := s.largestPrefix(window, offsets)
		if cut <= len(carry) {
			// The carried overlap alone fills the window; drop it and
			// keep making progress on the raw remainder.
			carry = ""
			continue
		}

		boundary := s.snapToBoundary(window, cut, len(carry))
		chunk := window[:boundary]
		pieces = append(pieces, Piece{Content: chunk, TokenCount: s.counter.Count(chunk)})

		carry = s.ExtractOverlap(chunk, s.cfg.OverlapTokens)
		remaining = window[boundary:]
	}

	s.logger.Debug("token split completed",
		zap.Int("pieces", len(pieces)),
		zap.Int("max_tokens", s.cfg.MaxTokens),
		zap.Int("overlap_tokens", s.cfg.OverlapTokens))
	return pieces
}

// ExtractOverlap returns the longest literal suffix of text that counts at
// most overlapTokens tokens. Zero overlap yields the empty string; text
// already under the budget is returned whole.
func (s *TokenSplitter) ExtractOverlap(text string, overlapTokens int) string {
	if overlapTokens <= 0 || text == "" {
		return ""
	}
	if s.counter.Count(text) <= overlapTokens {
		return text
	}

	offsets := runeOffsets(text)
	// Smallest start offset whose suffix fits the budget: token counts
	// shrink as the suffix shortens, so binary search applies.
	i := sort.Search(len(offsets), func(i int) bool {
		return s.counter.Count(text[offsets[i]:]) <= overlapTokens
	})
	if i >= len(offsets) {
		return ""
	}
	return text[offsets[i]:]
}

// largestPrefix returns the byte offset of the largest prefix of window that
// counts at most MaxTokens tokens. Offsets are rune-aligned.
func (s *TokenSplitter) largestPrefix(window string, offsets []int) int {
	// Find the first offset whose prefix exceeds the ceiling; the cut is
	// the offset just before it.
	i := sort.Search(len(offsets), func(i int) bool {
		return s.counter.Count(window[:offsets[i]]) > s.cfg.MaxTokens
	})
	if i == 0 {
		// Even a single rune exceeds the ceiling; force minimal progress.
		if len(offsets) > 1 {
			return offsets[1]
		}
		return len(window)
	}
	return offsets[i-1]
}

// snapToBoundary searches backward from the raw cut through the separator
// priority list for the nearest boundary past the retention threshold. A
// boundary leaving the piece under MinTokens is rejected: only the final
// piece may run short. With no acceptable boundary, the raw cut stands.
func (s *TokenSplitter) snapToBoundary(window string, cut, carryLen int) int {
	minKeep := cut / 2
	if minKeep <= carryLen {
		minKeep = carryLen + 1
	}

	head := window[:cut]
	for _, sep := range boundarySeparators {
		idx := strings.LastIndex(head, sep)
		if idx < minKeep {
			continue
		}
		boundary := idx + len(sep)
		if s.cfg.MinTokens > 0 && s.counter.Count(window[:boundary]) < s.cfg.MinTokens {
			continue
		}
		return boundary
	}
	return cut
}

// runeOffsets lists the byte offset of every rune start plus the final
// length, so any offsets[i] slices window at a valid boundary.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	return offsets
}
