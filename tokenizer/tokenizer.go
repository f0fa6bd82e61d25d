package tokenizer

import (
	"go.uber.org/zap"
)

// Tokenizer is the full token-counting interface. Implementations may need
// to load encoding data lazily, so counting can fail.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)

	// Encode converts text into token IDs.
	Encode(text string) ([]int, error)

	// Decode converts token IDs back into text.
	Decode(tokens []int) (string, error)

	// Name returns the tokenizer's identifier.
	Name() string
}

// Counter is the never-failing counting interface consumed by the splitters.
// A Counter must return a positive count for any non-empty input.
type Counter interface {
	Count(text string) int
}

// fallbackCounter wraps a Tokenizer and degrades to a character estimate when
// the underlying tokenizer errors, logging the failure once per call site.
type fallbackCounter struct {
	inner  Tokenizer
	est    *EstimatorTokenizer
	logger *zap.Logger
}

// NewCounter adapts a Tokenizer into a Counter with estimator fallback.
func NewCounter(inner Tokenizer, logger *zap.Logger) Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallbackCounter{
		inner:  inner,
		est:    NewEstimatorTokenizer(inner.Name(), 0),
		logger: logger.With(zap.String("component", "token_counter")),
	}
}

func (c *fallbackCounter) Count(text string) int {
	n, err := c.inner.CountTokens(text)
	if err != nil {
		c.logger.Warn("token count failed, using estimate", zap.Error(err))
		n, _ = c.est.CountTokens(text)
	}
	return n
}
