// Package audio transcodes inbound voice notes to MP3 using the ffmpeg
// binary. WhatsApp delivers voice notes as OGG/Opus, which the NLU
// speech endpoint does not accept.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultFFmpegPath is the ffmpeg binary used when none is configured.
const DefaultFFmpegPath = "ffmpeg"

// Opts holds configuration options for the converter.
type Opts struct {
	FFmpegPath string // path to the ffmpeg binary
	WorkDir    string // directory for temporary files
}

// Option defines a configuration option for the converter.
type Option func(*Opts)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(path string) Option {
	return func(o *Opts) { o.FFmpegPath = path }
}

// WithWorkDir sets the directory used for temporary files.
func WithWorkDir(dir string) Option {
	return func(o *Opts) { o.WorkDir = dir }
}

// Converter shells out to ffmpeg to transcode audio payloads.
type Converter struct {
	ffmpegPath string
	workDir    string
}

// NewConverter creates a converter, applying any provided options.
func NewConverter(opts ...Option) *Converter {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = DefaultFFmpegPath
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Converter{ffmpegPath: cfg.FFmpegPath, workDir: cfg.WorkDir}
}

// ToMP3 writes the payload to a temporary file, transcodes it with
// ffmpeg, and returns the MP3 bytes. Temporary files are removed before
// returning.
func (c *Converter) ToMP3(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("audio payload is empty")
	}

	id := uuid.NewString()
	inPath := filepath.Join(c.workDir, id+".ogg")
	outPath := filepath.Join(c.workDir, id+".mp3")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write audio temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, "-i", inPath, "-y", outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Error("Audio ffmpeg transcode failed", "error", err, "output", string(out))
		return nil, fmt.Errorf("ffmpeg transcode failed: %w", err)
	}

	mp3, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}
	slog.Debug("Audio transcoded to MP3", "in_bytes", len(data), "out_bytes", len(mp3))
	return mp3, nil
}
