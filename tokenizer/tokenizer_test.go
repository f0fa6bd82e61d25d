package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEstimatorCountTokens(t *testing.T) {
	est := NewEstimatorTokenizer("test", 0)

	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{"empty", "", 0, 0},
		{"single char rounds up to one", "x", 1, 1},
		{"ascii sentence", "the quick brown fox jumps over the lazy dog", 8, 14},
		{"cjk text denser than ascii", strings.Repeat("中", 30), 15, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := est.CountTokens(tt.text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, tt.min)
			assert.LessOrEqual(t, n, tt.max)
		})
	}
}

func TestEstimatorEncodeDecode(t *testing.T) {
	est := NewEstimatorTokenizer("test", 0)

	ids, err := est.Encode("some reasonably sized input text")
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	_, err = est.Decode(ids)
	assert.Error(t, err)
}

func TestTiktokenEncodingSelection(t *testing.T) {
	tests := []struct {
		model    string
		encoding string
	}{
		{"gpt-4o", "tiktoken/o200k_base"},
		{"gpt-4o-2024-08-06", "tiktoken/o200k_base"}, // prefix match
		{"gpt-4", "tiktoken/cl100k_base"},
		{"text-embedding-3-small", "tiktoken/cl100k_base"},
		{"some-unknown-model", "tiktoken/cl100k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			tok := NewTiktokenTokenizer(tt.model)
			assert.Equal(t, tt.encoding, tok.Name())
		})
	}
}

// failingTokenizer always errors, to exercise the Counter fallback.
type failingTokenizer struct{}

func (failingTokenizer) CountTokens(string) (int, error) { return 0, errors.New("no encoding data") }
func (failingTokenizer) Encode(string) ([]int, error)    { return nil, errors.New("no encoding data") }
func (failingTokenizer) Decode([]int) (string, error)    { return "", errors.New("no encoding data") }
func (failingTokenizer) Name() string                    { return "failing" }

func TestCounterFallsBackToEstimate(t *testing.T) {
	c := NewCounter(failingTokenizer{}, zap.NewNop())

	n := c.Count("a reasonably long line of source code that should count as several tokens")
	assert.Greater(t, n, 5)
	assert.Equal(t, 0, c.Count(""))
}

func TestCounterUsesExactCountWhenAvailable(t *testing.T) {
	est := NewEstimatorTokenizer("test", 0)
	c := NewCounter(est, zap.NewNop())

	exact, err := est.CountTokens("hello world")
	require.NoError(t, err)
	assert.Equal(t, exact, c.Count("hello world"))
}
