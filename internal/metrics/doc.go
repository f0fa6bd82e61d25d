// Package metrics provides internal metrics collection for the ingestion
// and query pipelines. This package is internal and should not be imported
// by external projects.
package metrics
