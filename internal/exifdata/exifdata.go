package exifdata

import (
	"fmt"
	"os"
	"strings"
	"time"

	"photovault/internal/logging"

	"github.com/cozy/goexif2/exif"
	"github.com/cozy/goexif2/mknote"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Meta holds the capture metadata recovered from an image file. All
// fields are optional; a file with no usable EXIF yields the zero value.
type Meta struct {
	Taken         *time.Time
	Latitude      *float64
	Longitude     *float64
	HasCameraTags bool
}

const exifTimeLayout = "2006:01:02 15:04:05"

// Extract reads EXIF metadata from the image at path. Missing or
// malformed EXIF data is not an error; only failure to open the file is.
func Extract(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ex, err := exif.Decode(f)
	if err != nil {
		logging.Debug("no usable EXIF in %s: %v", path, err)
		return &Meta{}, nil
	}

	meta := &Meta{
		Taken:         captureTime(ex),
		HasCameraTags: hasCameraTags(ex),
	}
	meta.Latitude, meta.Longitude = position(ex)
	return meta, nil
}

// captureTime prefers DateTimeOriginal over DateTime; both use the EXIF
// colon-separated layout.
func captureTime(ex *exif.Exif) *time.Time {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := ex.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.Parse(exifTimeLayout, strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}

// hasCameraTags reports whether the file carries a camera make or model,
// which distinguishes real photographs from rendered images.
func hasCameraTags(ex *exif.Exif) bool {
	for _, field := range []exif.FieldName{exif.Make, exif.Model} {
		tag, err := ex.Get(field)
		if err != nil {
			continue
		}
		if v, err := tag.StringVal(); err == nil && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func position(ex *exif.Exif) (*float64, *float64) {
	lat := coordinate(ex, exif.GPSLatitude, exif.GPSLatitudeRef)
	lon := coordinate(ex, exif.GPSLongitude, exif.GPSLongitudeRef)
	if lat == nil || lon == nil {
		return nil, nil
	}
	return lat, lon
}

func coordinate(ex *exif.Exif, field, refField exif.FieldName) *float64 {
	tag, err := ex.Get(field)
	if err != nil || tag.Count < 3 {
		return nil
	}

	var parts [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return nil
		}
		parts[i] = float64(num) / float64(den)
	}

	ref := ""
	if refTag, err := ex.Get(refField); err == nil {
		if v, err := refTag.StringVal(); err == nil {
			ref = strings.TrimSpace(v)
		}
	}

	dec := DMSToDecimal(parts[0], parts[1], parts[2], ref)
	return &dec
}

// DMSToDecimal converts a degrees/minutes/seconds coordinate to decimal
// degrees, negated for the southern and western hemispheres.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	dec := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(ref) {
	case "S", "W":
		return -dec
	}
	return dec
}
