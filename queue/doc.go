// Package queue provides the rate-limited FIFO task queue that every
// outbound API call (embeddings, vector store, LLM) is routed through.
//
// The queue is the pipeline's single synchronization point: one worker
// goroutine drains a mutex-guarded deque, gated by a per-minute call budget.
// Tasks whose execution fails with a rate-limit-classified error are
// re-enqueued at the front with exponential backoff, jumping ahead of
// later-enqueued tasks, up to the configured retry limit.
package queue
