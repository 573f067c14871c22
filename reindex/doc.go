// Package reindex re-embeds every stored chunk with a new embedding model.
// Vectors are replaced in place through the store's update path, so external
// ids survive the migration. Batches retry with exponential backoff and
// progress is reported to a writer.
package reindex
