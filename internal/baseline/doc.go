// Package baseline persists baseline tables as Parquet files.
//
// Column types map to Arrow as string→utf8, int→int64, date→date32 and
// decimal→utf8 holding the exact decimal text. Saves go through a
// temporary file and a rename.
package baseline
