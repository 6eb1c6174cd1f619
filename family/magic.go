package family

import (
	"encoding/binary"
	"io"
	"os"
)

// ggml container magics, little-endian uint32 at file offset 0.
const (
	// magicGGML marks the original unversioned container.
	magicGGML uint32 = 0x67676d6c
	// magicGGMF marks the first versioned container.
	magicGGMF uint32 = 0x67676d66
	// magicGGJT marks the current mmap-able container.
	magicGGJT uint32 = 0x67676a74
)

// readMagic reads the container magic from the first four bytes of path.
func readMagic(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// migratedPath derives the output location for a migrated/converted ggml
// file: the source name with a -ggjt suffix before the extension.
func migratedPath(path string) string {
	ext := ".bin"
	base := path
	if n := len(path) - len(ext); n > 0 && path[n:] == ext {
		base = path[:n]
	}
	return base + "-ggjt" + ext
}
