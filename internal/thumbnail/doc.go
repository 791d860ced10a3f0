// Package thumbnail generates bounded JPEG previews for images and
// videos. Videos contribute a representative frame extracted via ffmpeg;
// images are decoded with EXIF orientation applied, optionally through a
// libvips decode-time-shrink fast path.
package thumbnail
