// Package rag implements the ingestion and retrieval core: semantic and
// token-window splitters, content-hash deduplication, the embedding manager
// that feeds the vector store, query-time search orchestration, context
// assembly, response generation, and the query pipeline facade.
//
// Ingestion flow:
//
//	loader documents -> SemanticSplitter / TokenSplitter -> content hashing
//	  -> EmbeddingManager -> queue -> embeddings provider -> VectorStore
//
// Query flow:
//
//	prompt -> QueryPipeline -> SearchOrchestrator -> ContextBuilder
//	  -> ResponseGenerator -> queue -> LLM provider
//
// All I/O-bound calls go through queue.RateLimitedQueue; every other
// component is a synchronous transformation over in-memory data. Nothing in
// this package is a singleton: providers, stores, and the queue are injected
// at construction.
package rag
