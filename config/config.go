// Package config reads the replay settings from dotenv files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sarchlab/gsreplay/codec"
	"github.com/sarchlab/gsreplay/replay"
)

// Environment variables read by Load.
const (
	EnvRenderer       = "GSREPLAY_RENDERER"
	EnvLoop           = "GSREPLAY_LOOP"
	EnvDump           = "GSREPLAY_DUMP"
	EnvCaptureEnabled = "GSREPLAY_CAPTURE_ENABLED"
	EnvMaxPayload     = "GSREPLAY_MAX_PAYLOAD"
	EnvTraceDB        = "GSREPLAY_TRACE_DB"
	EnvMonitorPort    = "GSREPLAY_MONITOR_PORT"
)

// Loop selector thresholds. A selector above ContinuousDelayedFrom loops
// with a pause between passes; from ContinuousFrom on it loops without one.
const (
	ContinuousDelayedFrom = 90
	ContinuousFrom        = 200
	ContinuousPassDelay   = time.Second
)

// Config holds the replay settings.
type Config struct {
	Renderer string

	// Loop is the loop selector. Negative values ask for a repack of the
	// first -Loop frames, 1 to 90 for that many passes, 91 to 199 for
	// continuous replay with a pause between passes, and 200 or more for
	// continuous replay without pause.
	Loop int

	// Dump is set when the renderer dumps its output. Replay then runs a
	// single pass.
	Dump bool

	CaptureEnabled bool
	MaxPayload     uint32
	TraceDB        string
	MonitorPort    int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Renderer:       "null",
		Loop:           1,
		CaptureEnabled: true,
		MaxPayload:     codec.DefaultMaxPayload,
	}
}

// Load reads the dotenv files in order and then the process environment,
// which wins over the files. Missing files are skipped.
func Load(files ...string) (Config, error) {
	values := make(map[string]string)

	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}

		for k, v := range m {
			values[k] = v
		}
	}

	return Parse(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := values[key]

		return v, ok
	})
}

// Parse builds a Config from a lookup function such as os.LookupEnv.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	c := Default()

	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}

		*dst = n
	}

	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}

		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}

		*dst = b
	}

	str(EnvRenderer, &c.Renderer)
	integer(EnvLoop, &c.Loop)
	boolean(EnvDump, &c.Dump)
	boolean(EnvCaptureEnabled, &c.CaptureEnabled)
	str(EnvTraceDB, &c.TraceDB)
	integer(EnvMonitorPort, &c.MonitorPort)

	if v, ok := lookup(EnvMaxPayload); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil || n == 0 {
			errs = append(errs, fmt.Errorf("%s: invalid payload limit %q",
				EnvMaxPayload, v))
		} else {
			c.MaxPayload = uint32(n)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return c, nil
}

// RepackFrames returns the number of frames to repack and true when the loop
// selector asks for a repack instead of a replay.
func (c Config) RepackFrames() (int, bool) {
	if c.Loop < 0 {
		return -c.Loop, true
	}

	return 0, false
}

// LoopPolicy maps the loop selector to a replay policy. Dumping forces a
// single pass.
func (c Config) LoopPolicy() replay.LoopPolicy {
	switch {
	case c.Dump:
		return replay.Bounded(1)
	case c.Loop >= ContinuousFrom:
		return replay.Continuous(0)
	case c.Loop > ContinuousDelayedFrom:
		return replay.Continuous(ContinuousPassDelay)
	case c.Loop > 0:
		return replay.Bounded(c.Loop)
	default:
		return replay.Bounded(1)
	}
}
