// Package table defines the typed values, schemas, composite keys and
// immutable tables that the sync engine operates on.
//
// Every cell is a Value drawn from a closed set of kinds (Null, String,
// Int, Decimal, Date). Composite keys are encoded canonically so they
// can be used as map keys and hashed deterministically; a Null key
// component is never equal to an empty string.
package table
