package container

import (
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Format is the byte-stream transform wrapped around a dump. Every format
// carries the same logical layout.
type Format int

// Known formats.
const (
	FormatRaw Format = iota
	FormatXZ
	FormatGzip
	FormatZstd
	FormatLZ4
	FormatBrotli
)

var formatExtensions = []struct {
	format Format
	ext    string
}{
	{FormatXZ, ".xz"},
	{FormatGzip, ".gz"},
	{FormatZstd, ".zst"},
	{FormatLZ4, ".lz4"},
	{FormatBrotli, ".br"},
}

// FormatFromPath selects the format by file name suffix. Anything not
// recognized is raw.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	for _, fe := range formatExtensions {
		if strings.HasSuffix(lower, fe.ext) {
			return fe.format
		}
	}

	return FormatRaw
}

// Extension returns the suffix the format is recognized by. Raw has none.
func (f Format) Extension() string {
	for _, fe := range formatExtensions {
		if fe.format == f {
			return fe.ext
		}
	}

	return ""
}

// Compressed reports whether the format transforms the byte stream.
func (f Format) Compressed() bool {
	return f != FormatRaw
}

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatXZ:
		return "xz"
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	case FormatBrotli:
		return "brotli"
	default:
		return "unknown"
	}
}

// StripExtension removes the format suffix from path, if any.
func StripExtension(path string) string {
	ext := FormatFromPath(path).Extension()
	if ext == "" {
		return path
	}

	return path[:len(path)-len(ext)]
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newDecompressor wraps r in the decoder of the format. The returned closer
// releases decoder resources; it does not close r.
func newDecompressor(f Format, r io.Reader) (io.Reader, io.Closer, error) {
	switch f {
	case FormatXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}

		return xr, nopCloser{}, nil
	case FormatGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}

		return gr, gr, nil
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}

		return zr, closerFunc(func() error {
			zr.Close()
			return nil
		}), nil
	case FormatLZ4:
		src := &eofSource{r: r}

		return &lz4Reader{Reader: lz4.NewReader(src), src: src}, nopCloser{}, nil
	case FormatBrotli:
		return brotli.NewReader(r), nopCloser{}, nil
	default:
		return r, nopCloser{}, nil
	}
}

// eofSource remembers whether r ran dry.
type eofSource struct {
	r         io.Reader
	exhausted bool
}

func (s *eofSource) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n == 0 && err == io.EOF {
		s.exhausted = true
	}

	return n, err
}

// lz4Reader turns the io.EOF an lz4 frame reports when its input stops right
// after a block into io.ErrUnexpectedEOF. A complete frame is read up to its
// end mark and checksum without draining the source.
type lz4Reader struct {
	*lz4.Reader
	src *eofSource
}

func (r *lz4Reader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF && r.src.exhausted {
		err = io.ErrUnexpectedEOF
	}

	return n, err
}

// newCompressor wraps w in the encoder of the format. Closing the returned
// writer flushes the encoder but does not close w.
func newCompressor(f Format, w io.Writer) (io.WriteCloser, error) {
	switch f {
	case FormatXZ:
		return xz.NewWriter(w)
	case FormatGzip:
		return gzip.NewWriter(w), nil
	case FormatZstd:
		return zstd.NewWriter(w)
	case FormatLZ4:
		return lz4.NewWriter(w), nil
	case FormatBrotli:
		return brotli.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
