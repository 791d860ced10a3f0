package thumbnail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// frameSeekOffsets are tried in order when extracting a representative
// frame. One second in skips black lead-in frames; very short clips fall
// back to the start.
var frameSeekOffsets = []float64{1.0, 0.0, 0.5}

const frameExtractTimeout = 30 * time.Second

// extractFrame pulls a single frame from a video into a temporary JPEG.
// The returned cleanup removes the file and must always be called.
func (g *Generator) extractFrame(ctx context.Context, videoPath string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "photovault-frame-*.jpg")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(tmpPath) }

	var lastErr error
	for i, offset := range frameSeekOffsets {
		if i > 0 {
			metrics.VideoFrameSeekRetries.Inc()
		}
		if err := g.runFFmpeg(ctx, videoPath, tmpPath, offset); err != nil {
			lastErr = err
			logging.Debug("frame extraction at %.1fs failed for %s: %v", offset, videoPath, err)
			continue
		}
		// ffmpeg can exit zero without writing a frame on streams it
		// cannot decode.
		if info, err := os.Stat(tmpPath); err == nil && info.Size() > 0 {
			return tmpPath, cleanup, nil
		}
		lastErr = fmt.Errorf("ffmpeg produced no output at offset %.1fs", offset)
	}

	cleanup()
	return "", nil, fmt.Errorf("all seek offsets failed: %w", lastErr)
}

func (g *Generator) runFFmpeg(ctx context.Context, videoPath, outPath string, offset float64) error {
	ctx, cancel := context.WithTimeout(ctx, frameExtractTimeout)
	defer cancel()

	args := []string{"-y"}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.1f", offset))
	}
	args = append(args,
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		outPath,
	)

	cmd := exec.CommandContext(ctx, g.ffmpeg, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(string(out), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
