// Package classify assigns media kinds and recovers capture dates from
// filenames when no embedded metadata is available.
package classify
