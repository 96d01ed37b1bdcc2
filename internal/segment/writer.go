// Package segment persists accumulated audio blocks as container files and
// converts them into the interchange format sent for transcription.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mddudha/audiomind-app/internal/capture"
)

// ContainerBitDepth is the sample depth of segment containers.
const ContainerBitDepth = 32

// FinalName is the file name of a finalized session recording.
const FinalName = "session.wav"

// finalizeChunkFrames is how many frames Finalize copies at a time.
const finalizeChunkFrames = 8192

// ErrNoSegments is returned by Finalize when nothing was written.
var ErrNoSegments = errors.New("no segments written")

// Container is a block written to disk.
type Container struct {
	Index      int
	Path       string
	CapturedAt time.Time
	Frames     int
	Format     capture.Format
}

// Writer writes the blocks of one session as segment_0.wav, segment_1.wav, ...
// It is not safe for concurrent use.
type Writer struct {
	dir     string
	next    int
	written []Container
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Next returns the index the next Write will use.
func (w *Writer) Next() int { return w.next }

// Write stores the block synchronously and advances the segment index.
func (w *Writer) Write(b capture.Block) (Container, error) {
	if len(b.Samples) == 0 {
		return Container{}, errors.New("write segment: empty block")
	}
	path := filepath.Join(w.dir, fmt.Sprintf("segment_%d.wav", w.next))
	if err := WriteWAV(path, b.Samples, b.Format.SampleRate, b.Format.Channels, ContainerBitDepth); err != nil {
		return Container{}, fmt.Errorf("write segment %d: %w", w.next, err)
	}

	c := Container{
		Index:      w.next,
		Path:       path,
		CapturedAt: b.CapturedAt,
		Frames:     b.Frames(),
		Format:     b.Format,
	}
	w.next++
	w.written = append(w.written, c)
	return c, nil
}

// Finalize concatenates every container into session.wav and returns its
// path. Containers are copied in fixed-size chunks, so memory stays flat
// however long the session ran.
func (w *Writer) Finalize(ctx context.Context) (string, error) {
	if len(w.written) == 0 {
		return "", ErrNoSegments
	}

	format := w.written[0].Format
	path := filepath.Join(w.dir, FinalName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("finalize session: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, format.SampleRate, ContainerBitDepth, format.Channels, 1)
	buf := &audio.IntBuffer{Data: make([]int, finalizeChunkFrames*format.Channels)}
	for _, c := range w.written {
		if err := appendContainer(ctx, enc, buf, c, format); err != nil {
			enc.Close()
			return "", fmt.Errorf("finalize segment %d: %w", c.Index, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize session: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("finalize session: %w", err)
	}
	return path, nil
}

func appendContainer(ctx context.Context, enc *wav.Encoder, buf *audio.IntBuffer, c Container, format capture.Format) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("invalid wav file %s", c.Path)
	}
	if int(d.NumChans) != format.Channels || int(d.SampleRate) != format.SampleRate {
		return errors.New("format changed mid-session")
	}
	if int(d.BitDepth) != ContainerBitDepth {
		return fmt.Errorf("unexpected bit depth %d", d.BitDepth)
	}

	full := buf.Data
	defer func() { buf.Data = full }()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Data = full
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if n == 0 {
			return nil
		}
		buf.Data = full[:n]
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
}
