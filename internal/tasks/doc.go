// Package tasks runs the matching drivers against the release corpus with real-time progress reporting.
//
// # Drivers
//
// [MatchEngine] implements the two drivers:
//
//  1. [MatchEngine.Correlate] : hash correlation pass
//     - Counts the rows selected by a [CorrelationMode] for the progress total
//     - Streams release/file rows, largest file first within a release
//     - Extracts a digest from the release name, then the file name, and resolves it through the PreDB hash index
//     - Moves the dehash status toward the retry floor on a miss
//
//  2. [MatchEngine.Backfill] : direct title pass
//     - Streams releases without a PreDB link, optionally limited to recent days or one group
//     - Looks up the searchname as an exact PreDB title, then as a PreDB filename
//     - Sets only the PreDB link on a match
//
// Both return a [MatchSummary] and record a models.MatchRun when a run repository is configured.
//
// # Modes
//
// A [CorrelationMode] combines one [Window] (recent, category, retry) with a matching.WritePolicy and an optional
// row limit. A [BackfillMode] does the same for the title pass.
//
// # Stages
//
// [StageRunner] maps a stage argument ([ParseStageTarget]) to an ordered list of passes and runs them under a
// per-target lock file, so one group is never processed twice at once while different groups may run concurrently.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
