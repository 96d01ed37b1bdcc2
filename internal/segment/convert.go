package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultSampleRate is the interchange sample rate.
const DefaultSampleRate = 16000

// ErrConversionFailed marks a segment that could not be converted.
// Such segments are dropped from the transcription path.
var ErrConversionFailed = errors.New("conversion failed")

// Converter produces the interchange file for a container at a fresh path.
type Converter interface {
	Convert(ctx context.Context, src string) (string, error)
}

// NativeConverter downmixes to mono, resamples and writes 16-bit PCM WAV.
type NativeConverter struct {
	Dir        string
	SampleRate int
}

// Convert implements Converter.
func (c *NativeConverter) Convert(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	out, err := outputPath(c.Dir)
	if err != nil {
		return "", err
	}

	pcm, err := ReadWAV(src)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if pcm.Frames() == 0 {
		return "", fmt.Errorf("%w: %s has no audio", ErrConversionFailed, src)
	}

	rate := c.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	mono := Resample(Downmix(pcm.Samples, pcm.Channels), pcm.SampleRate, rate)
	if err := WriteWAV(out, mono, rate, 1, 16); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return out, nil
}

// FFmpegConverter shells out to ffmpeg for the same conversion.
type FFmpegConverter struct {
	Binary     string
	Dir        string
	SampleRate int
}

// Convert implements Converter.
func (c *FFmpegConverter) Convert(ctx context.Context, src string) (string, error) {
	out, err := outputPath(c.Dir)
	if err != nil {
		return "", err
	}
	bin := c.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	rate := c.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-loglevel", "error",
		"-i", src,
		"-ac", "1", "-ar", strconv.Itoa(rate),
		"-f", "wav",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("%w: ffmpeg: %w: %s", ErrConversionFailed, err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

func outputPath(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", ErrConversionFailed, err)
	}
	return filepath.Join(dir, uuid.NewString()+".wav"), nil
}
