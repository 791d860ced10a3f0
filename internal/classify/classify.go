package classify

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Kind is the media category recorded for each file.
type Kind string

const (
	KindPhoto          Kind = "photo"
	KindScreenshot     Kind = "screenshot"
	KindVideo          Kind = "video"
	KindUnidentifiable Kind = "unidentifiable"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
	".3gp":  true,
	".mts":  true,
	".wmv":  true,
}

// IsImage reports whether the path has a recognized image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsVideo reports whether the path has a recognized video extension.
func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsMedia reports whether the path is an image or a video.
func IsMedia(path string) bool {
	return IsImage(path) || IsVideo(path)
}

// Image classifies a still image. Precedence: a "screenshot" filename
// token wins, then camera EXIF tags indicate a photograph, then the
// configured default applies.
func Image(path string, hasCameraTags bool, fallback Kind) Kind {
	name := strings.ToLower(filepath.Base(path))
	if strings.Contains(name, "screenshot") || strings.Contains(name, "screen shot") {
		return KindScreenshot
	}
	if hasCameraTags {
		return KindPhoto
	}
	return fallback
}

// Filename timestamp patterns, most specific first. Year is pinned to
// 20xx to avoid matching resolution-like digit runs.
var (
	fullTimestampRe = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)
	dashedDateRe    = regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`)
	compactDateRe   = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)
)

// DateFromFilename extracts a capture date embedded in the filename, as
// camera apps commonly write (IMG_20230115_143022.jpg, VID_2023-01-15.mp4,
// 20230115.jpg). A matched but invalid date falls through to the next
// pattern. Returns nil when nothing usable is found.
func DateFromFilename(path string) *time.Time {
	name := filepath.Base(path)

	if m := fullTimestampRe.FindStringSubmatch(name); m != nil {
		if t := parseDate(m[1]+"-"+m[2]+"-"+m[3]+" "+m[4]+":"+m[5]+":"+m[6], "2006-01-02 15:04:05"); t != nil {
			return t
		}
	}
	if m := dashedDateRe.FindStringSubmatch(name); m != nil {
		if t := parseDate(m[1]+"-"+m[2]+"-"+m[3], "2006-01-02"); t != nil {
			return t
		}
	}
	if m := compactDateRe.FindStringSubmatch(name); m != nil {
		if t := parseDate(m[1]+"-"+m[2]+"-"+m[3], "2006-01-02"); t != nil {
			return t
		}
	}
	return nil
}

func parseDate(value, layout string) *time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &t
}
