// Package container provides sequential typed access to dump files, plain or
// compressed.
package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ErrTruncated is matched by every error caused by the stream ending before
// the requested number of bytes could be read.
var ErrTruncated = errors.New("container truncated")

// ErrBadContainer is matched by errors raised by the decompressor while the
// container is being opened, such as a missing or damaged stream header.
var ErrBadContainer = errors.New("bad container")

// TruncatedError tells how much of a read was satisfied before the stream
// ended.
type TruncatedError struct {
	Offset int64
	Want   int
	Got    int

	// AtEnd is set when nothing was read and the stream reported a clean
	// end. A compressed stream cut short never sets it.
	AtEnd bool
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("container truncated at offset %d: want %d bytes, got %d",
		e.Offset, e.Want, e.Got)
}

// Is makes errors.Is(err, ErrTruncated) hold.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncated
}

// A Reader reads a dump container from the beginning to the end.
type Reader struct {
	format Format
	file   io.Closer
	codec  io.Closer
	src    *bufio.Reader
	offset int64
	closed bool
	scr    [4]byte
}

// Open opens path on fs. The format is chosen by the file name suffix.
func Open(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := newReader(f, FormatFromPath(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r.file = f

	return r, nil
}

// NewReader reads a container of the given format from src. Closing the
// Reader does not close src.
func NewReader(src io.Reader, format Format) (*Reader, error) {
	return newReader(src, format)
}

func newReader(src io.Reader, format Format) (*Reader, error) {
	dec, codec, err := newDecompressor(format, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadContainer, format, err)
	}

	return &Reader{
		format: format,
		codec:  codec,
		src:    bufio.NewReaderSize(dec, 64*1024),
	}, nil
}

// Format returns the container format.
func (r *Reader) Format() Format {
	return r.format
}

// Offset returns the number of logical (decompressed) bytes read so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// ReadExact fills buf completely. If the stream ends first, the returned
// error matches ErrTruncated and is a *TruncatedError telling how many bytes
// were read. Other decompressor errors are returned as they are.
func (r *Reader) ReadExact(buf []byte) error {
	n, err := io.ReadFull(r.src, buf)
	start := r.offset
	r.offset += int64(n)

	if err == nil {
		return nil
	}

	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return &TruncatedError{
			Offset: start,
			Want:   len(buf),
			Got:    n,
			AtEnd:  n == 0 && err == io.EOF,
		}
	}

	return err
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.ReadExact(r.scr[:1]); err != nil {
		return 0, err
	}

	return r.scr[0], nil
}

// ReadU32 reads a little endian 32 bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.ReadExact(r.scr[:4]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(r.scr[:4]), nil
}

// Close releases the decoder and the underlying file. It is safe to call
// more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	err := r.codec.Close()
	if r.file != nil {
		if ferr := r.file.Close(); err == nil {
			err = ferr
		}
	}

	return err
}
