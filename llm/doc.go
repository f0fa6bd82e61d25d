// Package llm defines the chat-completion Provider interface consumed by the
// response generator, plus HTTP implementations for Anthropic and OpenAI.
//
// Providers translate upstream HTTP failures into types.Error values so the
// task queue can classify rate limits uniformly; they perform no retries of
// their own.
package llm
