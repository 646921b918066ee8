// Package archive writes and reads .tar.gz backups of the chat service's
// data: the channel snapshot, the bolt store, the scrollback database and
// the configuration. Every archive carries a manifest with SHA-256 sums.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive member names.
const (
	SnapshotName = "data/chatdb"
	BoltName     = "data/chat.bolt"
	SQLName      = "data/chat.sqlite"
	ManifestName = "manifest.json"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	Channels  int                  `json:"channels"`
	Objects   int                  `json:"objects"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "snapshot", "bolt", "sql", "conf"
}

// Params holds all inputs needed to create an archive.
type Params struct {
	Snapshot          []byte                      // Channel snapshot (nil = skip)
	BoltSnapshotFunc  func(destPath string) error // Writes a consistent bolt copy (nil = skip)
	SQLPath           string                      // Path to SQLite database (empty = skip)
	SQLCheckpointFunc func() error                // Checkpoint WAL before copy (nil = skip)
	ConfPaths         []string                    // Config file and its includes
	ArchiveDir        string                      // Output directory for the archive
	Channels          int                         // Number of channels for manifest
	Objects           int                         // Number of objects for manifest
	Now               time.Time                   // Zero means time.Now()
}

// Create writes a .tar.gz archive and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.ArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.ArchiveDir, err)
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	archivePath := filepath.Join(p.ArchiveDir, fmt.Sprintf("chat-%s.tar.gz", now.Format("20060102-150405")))

	tmpDir, err := os.MkdirTemp("", "mushchat-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest := Manifest{
		Version:   1,
		Server:    "mushchat",
		Timestamp: now.UTC().Format(time.RFC3339),
		Channels:  p.Channels,
		Objects:   p.Objects,
		Files:     make(map[string]FileEntry),
	}

	// Data files are staged before the archive is opened.
	staged := make(map[string]string)
	var order []string
	stage := func(name, path string) {
		staged[name] = path
		order = append(order, name)
	}
	if p.Snapshot != nil {
		path := filepath.Join(tmpDir, "chatdb")
		if err := os.WriteFile(path, p.Snapshot, 0644); err != nil {
			return "", fmt.Errorf("archive: stage snapshot: %w", err)
		}
		stage(SnapshotName, path)
	}
	if p.BoltSnapshotFunc != nil {
		path := filepath.Join(tmpDir, "chat.bolt")
		if err := p.BoltSnapshotFunc(path); err != nil {
			return "", fmt.Errorf("archive: bolt snapshot: %w", err)
		}
		stage(BoltName, path)
	}
	if p.SQLPath != "" {
		if p.SQLCheckpointFunc != nil {
			if err := p.SQLCheckpointFunc(); err != nil {
				return "", fmt.Errorf("archive: sql checkpoint: %w", err)
			}
		}
		path := filepath.Join(tmpDir, "chat.sqlite")
		if err := copyFile(p.SQLPath, path); err != nil {
			return "", fmt.Errorf("archive: copy sql: %w", err)
		}
		stage(SQLName, path)
	}

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	defer outFile.Close()
	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	for _, name := range order {
		entry, err := addFileToTar(tw, staged[name], name)
		if err != nil {
			return "", err
		}
		entry.Type = fileType(name)
		manifest.Files[name] = entry
	}
	for _, conf := range p.ConfPaths {
		if _, err := os.Stat(conf); err != nil {
			continue
		}
		name := "conf/" + filepath.Base(conf)
		entry, err := addFileToTar(tw, conf, name)
		if err != nil {
			return "", err
		}
		entry.Type = "conf"
		manifest.Files[name] = entry
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     ManifestName,
		Size:     int64(len(manifestJSON)),
		Mode:     0644,
		ModTime:  now,
	}); err != nil {
		return "", fmt.Errorf("archive: write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestJSON); err != nil {
		return "", fmt.Errorf("archive: write manifest: %w", err)
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("archive: close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("archive: close gzip: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return "", fmt.Errorf("archive: close %s: %w", archivePath, err)
	}
	return archivePath, nil
}

func fileType(name string) string {
	switch name {
	case SnapshotName:
		return "snapshot"
	case BoltName:
		return "bolt"
	case SQLName:
		return "sql"
	}
	return "conf"
}

// addFileToTar adds a single file to the tar archive with the given archive name,
// computing its SHA-256 while writing.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}

	// Use forward slashes in tar paths
	archName = strings.ReplaceAll(archName, "\\", "/")

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     archName,
		Size:     info.Size(),
		Mode:     0644,
		ModTime:  info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}

	return FileEntry{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   written,
	}, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
