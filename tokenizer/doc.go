// Package tokenizer provides token counting for the splitters and context
// budget checks. The tiktoken-backed implementation gives exact counts for
// OpenAI-family encodings; the estimator is a CJK-aware character heuristic
// used when no encoding data is available or a count must never fail.
package tokenizer
