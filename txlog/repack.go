package txlog

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/sarchlab/gsreplay/container"
)

// RepackPath names the output of Repack: the dump name with its container
// suffix and ".gs" removed, followed by "_repack.gs".
func RepackPath(src string) string {
	base := container.StripExtension(src)
	base = strings.TrimSuffix(base, ".gs")

	return base + "_repack.gs"
}

// Repack copies the header and the first frames of src into a raw dump at
// dst. It returns the repacked log.
func Repack(fs afero.Fs, src, dst string, frames int, maxPayload uint32) (*Log, error) {
	l, err := LoadFile(fs, src, LoadOptions{
		MaxPayload: maxPayload,
		FrameLimit: frames,
	})
	if err != nil {
		return nil, err
	}

	if err := l.WriteFile(fs, dst); err != nil {
		return nil, err
	}

	return l, nil
}
