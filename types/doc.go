// Package types defines the shared data model of the ragflow pipeline:
// documents, chunks and their metadata, search matches, assembled context
// bundles, conversation turns, and the unified structured error type used
// across providers, the task queue, and the query pipeline.
//
// The package has no dependencies on other ragflow packages so that every
// layer (splitters, stores, providers, pipeline) can exchange values without
// import cycles.
package types
