package mrtpipe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
)

// fetchDecoded downloads ref.URL, decompresses it per its extension,
// and writes the plain MRT bytes to a temp file, returning a path
// mrt.Reader.ReadFromPath can consume and a cleanup func to remove it.
//
// bgpfix/mrt only exposes a path-based reader (stages/mrt.go), not a
// streaming one, so the download is staged to disk rather than piped
// directly into the decoder.
func fetchDecoded(ctx context.Context, client *http.Client, ref FileRef) (tmpPath string, cleanup func(), err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("mrtpipe: build request for %s: %w", ref.URL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("mrtpipe: fetch %s: %w", ref.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("mrtpipe: fetch %s: %s", ref.URL, resp.Status)
	}

	rd, closeRd, err := Decompress(resp.Body, ref.URL)
	if err != nil {
		return "", nil, err
	}
	defer closeRd()

	tmp, err := os.CreateTemp("", "monocle-mrt-*.mrt")
	if err != nil {
		return "", nil, fmt.Errorf("mrtpipe: create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, rd); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("mrtpipe: write %s: %w", path.Base(ref.URL), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("mrtpipe: close temp file: %w", err)
	}

	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}
