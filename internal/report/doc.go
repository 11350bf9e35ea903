// Package report renders the outcome of a sync run for people.
//
// A run produces two files that share a stem built from the table name
// and the batch's recency span (see engine.DateRange):
//
//	<table>_report_<range>.md    Markdown summary
//	<table>_report_<range>.xlsx  workbook with the row-level detail
//
// The Markdown summary covers validation results, overall change counts,
// a per-file breakdown with accepted rows by update date, and keys that
// arrived more than once. The workbook carries the same summary plus
// the New Rows, Updated Rows, Duplicate Items, Dropped Rows and
// Validation Issues sheets.
package report
