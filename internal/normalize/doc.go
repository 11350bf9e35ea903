// Package normalize converts raw incremental extracts into typed rows.
//
// Header names and string cells are trimmed and NFC-normalized, blank
// strings become Null, and declared int, decimal and date columns are
// coerced. A non-key cell that cannot be typed becomes Null and is
// counted; a key cell that cannot be typed drops its row. A file whose
// header lacks a key column or the recency column is rejected as a whole.
package normalize
