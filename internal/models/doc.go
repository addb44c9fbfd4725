// Package models defines domain entities for the PreDB correlation engine.
//
// The package contains two categories of types:
//
// 1. Records owned by other processes, read or patched in place:
//   - [PreDBEntry] : Canonical release title with nuke status, written by PreDB ingestion
//   - [Release] : Aggregated release built by the collection stage, patched by the matchers
//   - [ReleaseFile] : File belonging to a release
//   - [HashCandidate] : One row of the release/file join scanned by the hash path
//
// 2. Persistent Entities owned by this service:
//   - [MatchRun] : History of each matching driver invocation
//
// [MatchRun] implements the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
