package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoManifest is returned for archives without a manifest.json.
var ErrNoManifest = errors.New("archive: manifest.json not found")

// Info holds metadata about an existing archive file.
type Info struct {
	Path      string // Full filesystem path
	Filename  string // Base filename
	Size      int64  // File size in bytes
	Timestamp string // From manifest, or file mod time
	Channels  int    // From manifest
	Objects   int    // From manifest
}

// List scans an archive directory for .tar.gz files and returns info
// about each, sorted newest-first.
func List(archiveDir string) ([]Info, error) {
	pattern := filepath.Join(archiveDir, "*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var archives []Info
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		ai := Info{
			Path:      path,
			Filename:  filepath.Base(path),
			Size:      info.Size(),
			Timestamp: info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		}
		if m, err := ReadManifest(path); err == nil {
			ai.Timestamp = m.Timestamp
			ai.Channels = m.Channels
			ai.Objects = m.Objects
		}
		archives = append(archives, ai)
	}

	// RFC3339 timestamps sort lexically.
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp > archives[j].Timestamp
	})
	return archives, nil
}

// ReadManifest opens a .tar.gz file and decodes its manifest.json entry.
func ReadManifest(archivePath string) (*Manifest, error) {
	var m *Manifest
	err := walk(archivePath, func(hdr *tar.Header, r io.Reader) (bool, error) {
		if hdr.Name != ManifestName {
			return false, nil
		}
		m = new(Manifest)
		if err := json.NewDecoder(r).Decode(m); err != nil {
			return true, fmt.Errorf("archive: parse manifest: %w", err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoManifest
	}
	return m, nil
}

// walk calls fn for each regular entry until fn reports done.
func walk(archivePath string, fn func(hdr *tar.Header, r io.Reader) (done bool, err error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", archivePath, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: %s: %w", archivePath, err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: %s: %w", archivePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		done, err := fn(hdr, tr)
		if err != nil || done {
			return err
		}
	}
}
