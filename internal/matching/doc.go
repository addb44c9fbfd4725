// Package matching decides whether a release corresponds to a PreDB entry.
//
// Matching is split into small ordered strategy lists so a new source can be appended without touching the others:
//   - [Extractor] : pulls an embedded hex digest from a release name, then from a file name
//   - [TitleMatcher] : exact title lookup, then exact filename lookup
//   - [HashMatcher] : resolves a digest through the PreDB hash index and applies the outcome to the release
//   - [Categorizer] : picks a category for a renamed release from its canonical title
//
// Writes go through [ReleaseWriter], whose implementations must be idempotent. [WritePolicy] selects between a dry
// preview that only reports what would change and an apply mode that persists it.
package matching
