package mrtpipe

import (
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// Decompress wraps a raw file reader in the decompression chain its
// extension implies, mirroring stages/read.go's gzip/zstd/bzip2
// auto-detection exactly (bz2 -> dsnet/compress/bzip2, gz ->
// compress/gzip, zst/zstd -> klauspost/compress/zstd, anything else ->
// passthrough). Exported so internal/ingest's dataset fetchers can
// decompress the same upstream archive families (as2rel, pfx2as) this
// pipeline already knows how to read, without a second copy of the
// extension-sniffing chain.
func Decompress(raw io.Reader, name string) (io.Reader, func() error, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".bz2":
		r, err := bzip2.NewReader(raw, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("mrtpipe: bzip2: %w", err)
		}
		return r, r.Close, nil
	case ".gz":
		r, err := gzip.NewReader(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("mrtpipe: gzip: %w", err)
		}
		return r, r.Close, nil
	case ".zst", ".zstd":
		r, err := zstd.NewReader(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("mrtpipe: zstd: %w", err)
		}
		return r, func() error { r.Close(); return nil }, nil
	default:
		return raw, func() error { return nil }, nil
	}
}
