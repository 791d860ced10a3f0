package store

import "time"

// Photo is one row of the photos table. A row exists for every media file
// the walker has seen, regardless of how far through the pipeline it is.
type Photo struct {
	ID          int64
	Path        string
	Description string
	FirstSeen   time.Time
	DateTaken   *time.Time
	Latitude    *float64
	Longitude   *float64
	ThumbDone   bool
	FacesDone   bool
	ExifDone    bool
	Kind        string
}

// Person is an identity in the per-user gallery. The embedding is the
// reference vector recorded when the identity was first created.
type Person struct {
	ID            int64
	Name          string
	ThumbnailPath string
	Embedding     []float32
}
