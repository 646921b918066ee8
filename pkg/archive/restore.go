package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RestoreParams names where each archived data file goes. Empty
// destinations are skipped.
type RestoreParams struct {
	ArchivePath  string
	SnapshotDest string
	BoltDest     string
	SQLDest      string
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	FilesRestored int
	Warnings      []string
}

// Restore checks every file of an archive against its manifest and then
// copies the data files to their destinations. Nothing is written unless
// the whole archive verifies.
func Restore(p RestoreParams) (*RestoreResult, error) {
	manifest, err := ReadManifest(p.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "mushchat-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	result := &RestoreResult{}
	extracted := make(map[string]bool)
	err = walk(p.ArchivePath, func(hdr *tar.Header, r io.Reader) (bool, error) {
		if hdr.Name == ManifestName {
			return false, nil
		}
		want, ok := manifest.Files[hdr.Name]
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is not in the manifest, skipped", hdr.Name))
			return false, nil
		}
		if err := extractVerified(tmpDir, hdr.Name, r, want); err != nil {
			return true, err
		}
		extracted[hdr.Name] = true
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	for name := range manifest.Files {
		if !extracted[name] {
			return nil, fmt.Errorf("restore: %s listed in manifest but missing", name)
		}
	}

	for _, t := range []struct{ name, dest string }{
		{SnapshotName, p.SnapshotDest},
		{BoltName, p.BoltDest},
		{SQLName, p.SQLDest},
	} {
		if t.dest == "" || !extracted[t.name] {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(t.dest), 0755); err != nil {
			return nil, fmt.Errorf("restore: create dir for %s: %w", t.dest, err)
		}
		src := filepath.Join(tmpDir, filepath.FromSlash(t.name))
		if err := copyFile(src, t.dest); err != nil {
			return nil, fmt.Errorf("restore: copy %s: %w", t.name, err)
		}
		result.FilesRestored++
	}
	return result, nil
}

// extractVerified writes name from r into dir and checks it against want.
func extractVerified(dir, name string, r io.Reader, want FileEntry) error {
	if strings.Contains(name, "..") || filepath.IsAbs(name) {
		return fmt.Errorf("restore: unsafe path %q", name)
	}
	dest := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), r); err != nil {
		return fmt.Errorf("restore: extract %s: %w", name, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want.SHA256 {
		return fmt.Errorf("restore: checksum mismatch for %s", name)
	}
	return f.Close()
}
