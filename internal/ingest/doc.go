// Package ingest reads incremental extracts and allow-lists from disk.
//
// Extracts arrive as xlsx workbooks or CSV files. Either way the first
// non-blank row is the header and every following row is a record; the
// result is a normalize.RawFile whose cells are still untyped text.
// Typing, trimming and date parsing happen later in package normalize.
//
// Workbook cells are read with their displayed text, so a date column
// must use a number format covered by the table's date_formats.
package ingest
