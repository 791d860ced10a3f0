package classify

import (
	"testing"
	"time"
)

func TestImage(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		hasCameraTags bool
		fallback      Kind
		want          Kind
	}{
		{
			name:          "screenshot token wins over camera tags",
			path:          "/data/phone/files/Screenshot_20230101.png",
			hasCameraTags: true,
			fallback:      KindPhoto,
			want:          KindScreenshot,
		},
		{
			name:     "screenshot token case insensitive",
			path:     "/data/phone/files/SCREENSHOT-home.png",
			fallback: KindPhoto,
			want:     KindScreenshot,
		},
		{
			name:     "two word screenshot token",
			path:     "/data/mac/files/Screen Shot 2023-05-01.png",
			fallback: KindPhoto,
			want:     KindScreenshot,
		},
		{
			name:          "camera tags make a photo",
			path:          "/data/phone/files/IMG_0001.jpg",
			hasCameraTags: true,
			fallback:      KindScreenshot,
			want:          KindPhoto,
		},
		{
			name:     "no signal falls back to default",
			path:     "/data/phone/files/image.jpg",
			fallback: KindPhoto,
			want:     KindPhoto,
		},
		{
			name:     "configured screenshot default",
			path:     "/data/phone/files/image.jpg",
			fallback: KindScreenshot,
			want:     KindScreenshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Image(tt.path, tt.hasCameraTags, tt.fallback)
			if got != tt.want {
				t.Errorf("Image(%q, %v, %q) = %q, want %q",
					tt.path, tt.hasCameraTags, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestDateFromFilename(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string // empty means nil expected
	}{
		{
			name: "full timestamp",
			path: "IMG_20230115_143022.jpg",
			want: "2023-01-15 14:30:22",
		},
		{
			name: "dashed date",
			path: "VID_2023-01-15.mp4",
			want: "2023-01-15 00:00:00",
		},
		{
			name: "compact date",
			path: "20230115.jpg",
			want: "2023-01-15 00:00:00",
		},
		{
			name: "invalid month falls through to nothing",
			path: "20231315_999999.jpg",
			want: "",
		},
		{
			name: "no date",
			path: "photo.jpg",
			want: "",
		},
		{
			name: "pre-2000 years not matched",
			path: "19991231.jpg",
			want: "",
		},
		{
			name: "date inside longer name",
			path: "phone/files/PXL_20240607_081512345.jpg",
			want: "2024-06-07 08:15:12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateFromFilename(tt.path)
			if tt.want == "" {
				if got != nil {
					t.Errorf("DateFromFilename(%q) = %v, want nil", tt.path, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("DateFromFilename(%q) = nil, want %s", tt.path, tt.want)
			}
			if got.Format(time.DateTime) != tt.want {
				t.Errorf("DateFromFilename(%q) = %s, want %s", tt.path, got.Format(time.DateTime), tt.want)
			}
		})
	}
}

func TestExtensionSets(t *testing.T) {
	tests := []struct {
		path    string
		isImage bool
		isVideo bool
	}{
		{"a.jpg", true, false},
		{"a.JPEG", true, false},
		{"a.png", true, false},
		{"a.heic", true, false},
		{"a.mp4", false, true},
		{"a.MOV", false, true},
		{"a.txt", false, false},
		{"noext", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsImage(tt.path); got != tt.isImage {
				t.Errorf("IsImage(%q) = %v, want %v", tt.path, got, tt.isImage)
			}
			if got := IsVideo(tt.path); got != tt.isVideo {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.path, got, tt.isVideo)
			}
			if got := IsMedia(tt.path); got != (tt.isImage || tt.isVideo) {
				t.Errorf("IsMedia(%q) = %v", tt.path, got)
			}
		})
	}
}
