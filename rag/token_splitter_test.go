package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// wordCounter counts whitespace-separated fields, which makes token budgets
// deterministic in tests without a real encoder.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newTestSplitter(maxTokens, overlapTokens int) *TokenSplitter {
	return NewTokenSplitter(TokenSplitterConfig{
		MaxTokens:     maxTokens,
		MinTokens:     0,
		OverlapTokens: overlapTokens,
	}, wordCounter{}, zap.NewNop())
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestTokenSplitterEmptyInput(t *testing.T) {
	s := newTestSplitter(20, 5)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestTokenSplitterShortInputSinglePiece(t *testing.T) {
	s := newTestSplitter(20, 5)

	text := words(10)
	pieces := s.Split(text)

	require.Len(t, pieces, 1)
	assert.Equal(t, text, pieces[0].Content)
	assert.Equal(t, 10, pieces[0].TokenCount)
}

func TestTokenSplitterRespectsCeilingAndOverlap(t *testing.T) {
	s := newTestSplitter(20, 5)

	pieces := s.Split(words(100))
	require.Greater(t, len(pieces), 1)

	for i, p := range pieces {
		assert.LessOrEqual(t, p.TokenCount, 20, "piece %d over ceiling", i)
	}
	for i := 1; i < len(pieces); i++ {
		overlap := s.ExtractOverlap(pieces[i-1].Content, 5)
		assert.True(t, strings.HasPrefix(pieces[i].Content, overlap),
			"piece %d does not continue from its predecessor's tail", i)
	}
}

func TestTokenSplitterReassemblesOriginal(t *testing.T) {
	s := newTestSplitter(20, 5)
	text := words(87)

	pieces := s.Split(text)
	require.NotEmpty(t, pieces)

	var rebuilt strings.Builder
	rebuilt.WriteString(pieces[0].Content)
	for i := 1; i < len(pieces); i++ {
		overlap := s.ExtractOverlap(pieces[i-1].Content, 5)
		rebuilt.WriteString(pieces[i].Content[len(overlap):])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestTokenSplitterSnapsToBlankLine(t *testing.T) {
	s := newTestSplitter(20, 0)

	text := words(15) + "\n\n" + words(15)
	pieces := s.Split(text)

	require.Len(t, pieces, 2)
	assert.True(t, strings.HasSuffix(pieces[0].Content, "\n\n"),
		"first piece should end at the blank line, got %q", pieces[0].Content)
	assert.Equal(t, words(15), pieces[1].Content)
}

func TestTokenSplitterEnforcesFloor(t *testing.T) {
	s := NewTokenSplitter(TokenSplitterConfig{
		MaxTokens: 20,
		MinTokens: 15,
	}, wordCounter{}, zap.NewNop())

	// Paragraphs of 11 words each: the blank-line boundary would leave
	// every piece at 11 tokens, under the floor, so the snap must fall
	// through to a word boundary instead.
	paragraphs := make([]string, 8)
	for i := range paragraphs {
		paragraphs[i] = words(11)
	}
	pieces := s.Split(strings.Join(paragraphs, "\n\n"))

	require.Greater(t, len(pieces), 1)
	for i, p := range pieces {
		assert.LessOrEqual(t, p.TokenCount, 20, "piece %d over ceiling", i)
		if i < len(pieces)-1 {
			assert.GreaterOrEqual(t, p.TokenCount, 15, "non-final piece %d under floor", i)
		}
	}
}

func TestTokenSplitterFloorKeepsBlankLineSnap(t *testing.T) {
	s := NewTokenSplitter(TokenSplitterConfig{
		MaxTokens: 20,
		MinTokens: 10,
	}, wordCounter{}, zap.NewNop())

	// An 11-word paragraph satisfies a floor of 10, so the blank-line
	// boundary stays preferred.
	pieces := s.Split(words(11) + "\n\n" + words(11) + "\n\n" + words(11))

	require.Greater(t, len(pieces), 1)
	assert.True(t, strings.HasSuffix(pieces[0].Content, "\n\n"),
		"first piece should still end at the blank line, got %q", pieces[0].Content)
	assert.GreaterOrEqual(t, pieces[0].TokenCount, 10)
}

func TestExtractOverlapShortTextReturnedWhole(t *testing.T) {
	s := newTestSplitter(512, 100)

	assert.Equal(t, "Short text", s.ExtractOverlap("Short text", 20))
}

func TestExtractOverlapZeroBudget(t *testing.T) {
	s := newTestSplitter(512, 100)

	assert.Equal(t, "", s.ExtractOverlap(words(50), 0))
	assert.Equal(t, "", s.ExtractOverlap("", 10))
}

func TestExtractOverlapLongestSuffix(t *testing.T) {
	s := newTestSplitter(512, 100)

	text := words(10)
	got := s.ExtractOverlap(text, 3)

	assert.True(t, strings.HasSuffix(text, got))
	assert.Equal(t, 3, wordCounter{}.Count(got))
}

func TestTokenSplitterProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxTokens := rapid.IntRange(4, 40).Draw(t, "max")
		minTokens := rapid.IntRange(0, maxTokens).Draw(t, "min")
		overlap := rapid.IntRange(0, maxTokens/2).Draw(t, "overlap")
		n := rapid.IntRange(0, 200).Draw(t, "words")

		s := NewTokenSplitter(TokenSplitterConfig{
			MaxTokens:     maxTokens,
			MinTokens:     minTokens,
			OverlapTokens: overlap,
		}, wordCounter{}, zap.NewNop())
		text := words(n)
		pieces := s.Split(text)

		for i, p := range pieces {
			if p.TokenCount > maxTokens {
				t.Fatalf("piece exceeds ceiling: %d > %d", p.TokenCount, maxTokens)
			}
			if len(pieces) > 1 && i < len(pieces)-1 && p.TokenCount < minTokens {
				t.Fatalf("non-final piece %d under floor: %d < %d", i, p.TokenCount, minTokens)
			}
		}
		for i := 1; i < len(pieces); i++ {
			ov := s.ExtractOverlap(pieces[i-1].Content, overlap)
			if !strings.HasPrefix(pieces[i].Content, ov) {
				t.Fatalf("piece %d missing overlap prefix", i)
			}
		}
	})
}

func TestExtractOverlapSuffixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSplitter(512, 100)
		n := rapid.IntRange(0, 120).Draw(t, "words")
		budget := rapid.IntRange(0, 30).Draw(t, "budget")

		text := words(n)
		got := s.ExtractOverlap(text, budget)

		if !strings.HasSuffix(text, got) {
			t.Fatalf("overlap %q is not a suffix of input", got)
		}
		if c := (wordCounter{}).Count(got); c > budget {
			t.Fatalf("overlap counts %d tokens, budget %d", c, budget)
		}
	})
}
