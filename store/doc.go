// Package store persists test vectors and run records in a bbolt database.
//
// Records are encoded as YAML so a database can be inspected with any bbolt
// browser. Vectors keep their exact wire bytes, including deliberately
// corrupted fields, and are keyed by name in the "vectors" bucket. Runs are
// keyed by a sequential ID in the "runs" bucket.
package store
