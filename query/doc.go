// Package query encodes list/filter parameters for collection endpoints.
//
// Filters travel as one JSON document in the "filter" parameter, so nested
// values, numbers, booleans and numeric-looking string keys keep their types
// end to end. Paging and sorting stay as plain parameters.
package query
