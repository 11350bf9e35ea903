// Package engine implements the incremental baseline sync engine.
//
// A run applies one batch of incremental extracts to the current baseline
// and produces the next baseline together with a change report.
//
// ARCHITECTURE:
//
// Sequential phases, data-parallel internals:
//
//  1. Normalizing: extracts are typed concurrently, one file per worker,
//     then rows are stamped with a logical seq (files in order, rows in order)
//  2. Deduplicating: one row per composite key, greatest (recency, seq) wins
//  3. Filtering: Smart Sync keeps rows new to the baseline or strictly newer
//  4. Diffing: field-level comparison of accepted rows against the baseline
//  5. Merging: anti-join the baseline on accepted keys, append accepted rows
//  6. Validating: advisory business-rule checks on the next baseline
//  7. Committed: the caller's Committer persists the run
//
// Filtering and diffing split rows into key-hash partitions evaluated
// concurrently. Every lookup is a hash probe against the baseline index;
// there is no per-row scan of the baseline.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Arrival order is the seq from Clock.Next(), never wall-clock time.
// Results are collected by input index, so worker scheduling never
// changes the output.
//
// Value Semantics:
// The baseline is never mutated. Merge builds a new table and checks its
// post-conditions before anything is committed.
//
// Cancellation:
// The context is honoured until merging starts. After that the run
// completes, including the commit.
package engine
