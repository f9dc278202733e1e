// Package txlog holds the ordered sequence of transactions of one dump
// session.
package txlog

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/sarchlab/gsreplay/codec"
	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
)

// A Log is the header of a session and its transactions in bus order. It is
// append-only while it is built and read-only afterwards, so a fully loaded
// Log can be read from any goroutine without locking.
type Log struct {
	header  *gs.Header
	txs     []*gs.Transaction
	summary Summary
}

// New creates an empty Log for the given header.
func New(header *gs.Header) *Log {
	return &Log{header: header}
}

// Append adds t at the end of the log.
func (l *Log) Append(t *gs.Transaction) {
	l.txs = append(l.txs, t)
	l.summary.add(t)
}

// Header returns the session header.
func (l *Log) Header() *gs.Header {
	return l.header
}

// Len returns the number of transactions.
func (l *Log) Len() int {
	return len(l.txs)
}

// At returns the i-th transaction.
func (l *Log) At(i int) *gs.Transaction {
	return l.txs[i]
}

// Transactions returns the transactions in order. The slice must not be
// modified.
func (l *Log) Transactions() []*gs.Transaction {
	return l.txs
}

// Frames returns the number of VSync transactions.
func (l *Log) Frames() int {
	return int(l.summary.Frames)
}

// Summary returns the aggregate figures of the log.
func (l *Log) Summary() Summary {
	return l.summary
}

// LoadOptions controls Load.
type LoadOptions struct {
	// MaxPayload bounds single allocations. Zero means
	// codec.DefaultMaxPayload.
	MaxPayload uint32

	// FrameLimit stops loading right after the VSync that ends frame
	// FrameLimit+1. Zero loads everything.
	FrameLimit int
}

// Load reads the header and every transaction from r. A corrupt dump yields
// an error and no Log; a partially decoded log is never returned.
func Load(r *container.Reader, opts LoadOptions) (*Log, error) {
	header, err := codec.ReadHeader(r, opts.MaxPayload)
	if err != nil {
		return nil, err
	}

	l := New(header)
	dec := codec.NewDecoder(r, opts.MaxPayload)

	for {
		t, err := dec.DecodeOne()
		if errors.Is(err, io.EOF) {
			return l, nil
		}

		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", dec.Count(), err)
		}

		l.Append(t)

		if opts.FrameLimit > 0 && l.Frames() > opts.FrameLimit {
			return l, nil
		}
	}
}

// LoadFile opens path on fs and loads it. The file is always closed before
// returning.
func LoadFile(fs afero.Fs, path string, opts LoadOptions) (*Log, error) {
	r, err := container.Open(fs, path)
	if errors.Is(err, container.ErrBadContainer) {
		return nil, fmt.Errorf("%w: %w", codec.ErrCorruptDump, err)
	}

	if err != nil {
		return nil, err
	}

	l, err := Load(r, opts)
	cerr := r.Close()

	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if cerr != nil {
		return nil, fmt.Errorf("%w: closing %s: %w",
			codec.ErrCorruptDump, path, cerr)
	}

	return l, nil
}

// Write stores the header and all transactions into w. It does not close w.
func (l *Log) Write(w *container.Writer) error {
	if err := codec.WriteHeader(w, l.header); err != nil {
		return err
	}

	enc := codec.NewEncoder(w)
	for i, t := range l.txs {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	return nil
}

// WriteFile stores the log into path on fs, in the format the suffix of
// path selects.
func (l *Log) WriteFile(fs afero.Fs, path string) error {
	w, err := container.Create(fs, path)
	if err != nil {
		return err
	}

	if err := l.Write(w); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
