// Package ingest feeds chunk records produced by the crawling and chunking
// collaborators into the vector store: batches are embedded concurrently on
// a worker pool and written by a single writer so store mutations stay
// serialized. A failed batch is logged and skipped; ingestion continues.
package ingest
