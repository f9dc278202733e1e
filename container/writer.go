package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// A Writer appends to a dump container.
type Writer struct {
	format Format
	file   io.Closer
	codec  io.WriteCloser
	dst    *bufio.Writer
	offset int64
	closed bool
	scr    [4]byte
}

// Create creates or truncates path on fs. The format is chosen by the file
// name suffix.
func Create(fs afero.Fs, path string) (*Writer, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, err
	}

	w, err := newWriter(f, FormatFromPath(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w.file = f

	return w, nil
}

// NewWriter writes a container of the given format into dst. Closing the
// Writer flushes everything but does not close dst.
func NewWriter(dst io.Writer, format Format) (*Writer, error) {
	return newWriter(dst, format)
}

func newWriter(dst io.Writer, format Format) (*Writer, error) {
	enc, err := newCompressor(format, dst)
	if err != nil {
		return nil, err
	}

	return &Writer{
		format: format,
		codec:  enc,
		dst:    bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// Format returns the container format.
func (w *Writer) Format() Format {
	return w.format
}

// Offset returns the number of logical bytes written so far.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.offset += int64(n)

	return n, err
}

// WriteU8 writes one byte.
func (w *Writer) WriteU8(v uint8) error {
	w.scr[0] = v
	_, err := w.Write(w.scr[:1])

	return err
}

// WriteU32 writes a little endian 32 bit integer.
func (w *Writer) WriteU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.scr[:4], v)
	_, err := w.Write(w.scr[:4])

	return err
}

// Flush pushes buffered bytes into the encoder. Compressed formats may still
// hold data until Close.
func (w *Writer) Flush() error {
	return w.dst.Flush()
}

// Close flushes and finalizes the encoder, then closes the file. It is safe
// to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.dst.Flush()
	if cerr := w.codec.Close(); err == nil {
		err = cerr
	}

	if w.file != nil {
		if ferr := w.file.Close(); err == nil {
			err = ferr
		}
	}

	return err
}
