// Package core defines the domain model shared across the websage system:
// chunk records produced by the chunking collaborator, stable content-derived
// identifiers, search results, validation rules, and the binary serializers
// used by the vector store's persistence layer.
//
// Identity invariants:
//   - A chunk id is a pure function of (url, hierarchy, local index), so
//     re-ingesting the same page never grows the store with duplicates.
//   - The 64-bit external ID assigned by the vector store is a pure function
//     of the record's resolved key, independent of insertion order or on-disk
//     layout. Hash collisions between distinct keys are treated as acceptably
//     rare at target scale and are not detected.
package core
