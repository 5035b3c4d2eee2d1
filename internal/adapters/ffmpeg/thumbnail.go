package ffmpeg

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"stillmotion/internal/core/domain"
)

const (
	defaultWidth   = 240
	defaultTimeout = 30 * time.Second
)

// Thumbnailer uses the local ffmpeg binary to render a small JPEG preview.
type Thumbnailer struct {
	binaryPath string
	width      int
	timeout    time.Duration
}

// NewThumbnailer creates a new thumbnailer. An empty binaryPath assumes
// ffmpeg is in PATH.
func NewThumbnailer(binaryPath string) *Thumbnailer {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Thumbnailer{
		binaryPath: binaryPath,
		width:      defaultWidth,
		timeout:    defaultTimeout,
	}
}

// Thumbnail pipes the image through ffmpeg and returns a data URL.
func (t *Thumbnailer) Thumbnail(ctx context.Context, img domain.SourceImage) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("ffmpeg: empty image")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// -vf scale keeps the aspect ratio; mjpeg to stdout
	cmd := exec.CommandContext(ctx, t.binaryPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vf", fmt.Sprintf("scale=%d:-2", t.width),
		"-frames:v", "1",
		"-f", "image2", "-c:v", "mjpeg",
		"pipe:1",
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(img.Data)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("ffmpeg returned an empty thumbnail")
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out.Bytes()), nil
}
