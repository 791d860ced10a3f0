// Package exifdata extracts capture time, GPS position and camera tags
// from image files.
package exifdata
