// Package store provides SQLite-backed durable sync state.
//
// The store keeps, per logical table:
//   - Sync State: row and column counts, fingerprint and summaries of the
//     committed baseline
//   - Applied Batches: the ledger of batch ids whose commit succeeded
//   - Runs: the history of every run and its outcome
//
// # Critical Patterns
//
// Commit After Baseline:
//   - The baseline file is persisted first; Commit records state, ledger
//     and run in one transaction afterwards
//   - A failed baseline write therefore never leaves a batch in the ledger
//
// Batch-Level Idempotency:
//   - UNIQUE(table_name, batch_id) on applied_batches
//   - Callers check IsApplied before running a batch
//
// Deterministic Ordering:
//   - Ledger and history order by seq INTEGER, never by timestamps
//
// # Connection
//
// Open limits the handle to one connection and sets journal_mode=WAL,
// synchronous=NORMAL and a five second busy timeout. Schema changes after
// the first release are numbered migrations tracked in user_version.
package store
