package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Reader decodes consecutive frames from a byte stream. It implements
// contracts.FrameSource.
//
// ReadFrame returns io.EOF at a clean end of stream and an
// *IncompleteFrameError when the stream ends inside a frame. The context is
// checked between frames only; a blocked read is not interrupted.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64<<10)}
}

// ReadFrame reads the next frame.
func (r *Reader) ReadFrame(ctx context.Context) (contracts.Frame, error) {
	if err := ctx.Err(); err != nil {
		return contracts.Frame{}, err
	}
	return readFrame(r.br)
}

// Writer encodes frames onto a byte stream. It is safe for concurrent use;
// each frame is written with a single Write call.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame encodes and writes f.
func (w *Writer) WriteFrame(f contracts.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, err := AppendFrame(w.buf[:0], f)
	if err != nil {
		return err
	}
	w.buf = buf
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("%w: writing frame %d: %v", contracts.ErrIOFailure, f.Sequence, err)
	}
	return nil
}
