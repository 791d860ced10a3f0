// Package store provides SQLite persistence for the enrichment pipeline.
//
// Each user has an independent database file holding three tables: photos
// (one row per discovered media file with its processing flags), people
// (the identity gallery), and photo_people (links between the two).
// Processing flags only ever move from false to true; re-running a pass
// over an already processed row is a no-op.
package store
