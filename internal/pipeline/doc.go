// Package pipeline runs sync batches against a persisted table.
//
// A Syncer owns one table: its compiled definition, its Parquet baseline
// and its rows in the state store. Apply is the whole write path:
//
//  1. Refuse a batch whose id is already in the applied-batch ledger,
//     unless forced.
//  2. Load the current baseline. A missing file is an empty table as
//     long as the state store has never recorded a commit.
//  3. Run the engine.
//  4. Commit: write the next baseline (temp file and rename), then record
//     state, ledger entry and run history in one SQLite transaction.
//
// The baseline is written before the state. If the state write fails the
// new baseline is already in place and the batch is not in the ledger;
// re-applying it classifies every row as unchanged.
//
// Dry runs, failures and refused batches are recorded in the run history
// only. Apply calls on one Syncer are serialized; coordinating several
// processes on one data directory is left to the caller.
package pipeline
