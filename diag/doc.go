// Package diag defines the diagnostics produced while ingesting a batch.
//
// A Diagnostic is an immutable record of what was wrong, how bad it is and
// which entity it concerns. Diagnostics are appended to a List in the order
// they are detected; nothing ever rewrites an earlier entry.
//
// # Kinds
//
//   - ConfigurationError: unknown source or unusable configuration (fatal, pre-run)
//   - SourceUnavailable: fetch failure (fatal for the run)
//   - MalformedSource: normalize failure (fatal for the run)
//   - SchemaViolation: per-object structural problem
//   - DanglingReference: relationship endpoint not present in the batch
//   - UnrecognizedTriple: relationship type triple missing from the allow-list
//   - DuplicateNode: a node id seen more than once in a batch
package diag
