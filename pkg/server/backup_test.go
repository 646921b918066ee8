package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/mushchat/pkg/archive"
	"github.com/crystal-mush/mushchat/pkg/boltstore"
)

func TestBackupCommand(t *testing.T) {
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "chat.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cc := testConf()
	cc.ArchiveDir = t.TempDir()
	e := newStoredEnv(t, cc, store, nil)
	e.withPublic(t)

	wantContains(t, e.run(bob, "@backup"), "Permission denied.")
	wantContains(t, e.run(wizard, "@backup/list"), "No backups found")
	wantContains(t, e.run(wizard, "@backup"), "Backup written to "+cc.ArchiveDir)
	wantContains(t, e.run(wizard, "@backup/list"), "1 backup(s).")

	list, err := archive.List(cc.ArchiveDir)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	m, err := archive.ReadManifest(list[0].Path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Channels != 1 || m.Objects != 6 {
		t.Errorf("manifest counts: channels=%d objects=%d", m.Channels, m.Objects)
	}
	for _, name := range []string{archive.SnapshotName, archive.BoltName} {
		if _, ok := m.Files[name]; !ok {
			t.Errorf("%s missing from the backup", name)
		}
	}
}

func TestBackupRestoresChannels(t *testing.T) {
	cc := testConf()
	cc.ArchiveDir = t.TempDir()
	e := newStoredEnv(t, cc, nil, nil)
	e.withPublic(t)
	e.srv.Execute(wizard, "@channel/desc Public=Backed up")
	path, err := e.srv.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	restored := filepath.Join(t.TempDir(), "chatdb")
	res, err := archive.Restore(archive.RestoreParams{ArchivePath: path, SnapshotDest: restored})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.FilesRestored != 1 {
		t.Errorf("FilesRestored = %d", res.FilesRestored)
	}

	cc2 := testConf()
	cc2.ChatDB = restored
	again := newStoredEnv(t, cc2, nil, nil)
	if err := again.srv.LoadSnapshot(false); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	c, ok := again.srv.Chat.Lookup("Public")
	if !ok {
		t.Fatal("Public missing after restore")
	}
	if c.Description() != "Backed up" {
		t.Errorf("description = %q", c.Description())
	}
}

func TestBackupRetain(t *testing.T) {
	cc := testConf()
	cc.ArchiveDir = t.TempDir()
	cc.ArchiveRetain = 1
	e := newStoredEnv(t, cc, nil, nil)

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e.srv.now = func() time.Time { return base }
	if _, err := e.srv.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	e.srv.now = func() time.Time { return base.Add(time.Hour) }
	newest, err := e.srv.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	list, err := archive.List(cc.ArchiveDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Path != newest {
		t.Errorf("kept %+v, want only %s", list, newest)
	}
}
