package boltstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chat.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testWorld() *gamedb.Database {
	db := gamedb.NewDatabase()
	db.SavedAt = time.Unix(1700000000, 0)
	db.Add(&gamedb.Object{DBRef: 0, Name: "Limbo", Location: gamedb.Nothing, Owner: 1, Flags: [3]int{int(gamedb.TypeRoom), 0, 0}})
	wiz := &gamedb.Object{DBRef: 1, Name: "Wizard", Location: 0, Owner: 1, Pennies: 1000,
		Flags: [3]int{int(gamedb.TypePlayer) | gamedb.FlagWizard, 0, 0}}
	wiz.SetAttr(gamedb.AttrChatFormat, "[%1] %5")
	db.Add(wiz)
	db.Add(&gamedb.Object{DBRef: 2, Name: "Alice", Location: 0, Owner: 2, Flags: [3]int{int(gamedb.TypePlayer), 0, 0}})
	return db
}

func TestImportAndLoadAll(t *testing.T) {
	s := openTemp(t)
	world := testWorld()
	if err := s.ImportFromDatabase(world); err != nil {
		t.Fatalf("ImportFromDatabase: %v", err)
	}
	if !s.HasData() {
		t.Fatal("HasData = false after import")
	}
	path := s.Path()
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got := s2.DB()
	if diff := cmp.Diff(world.Objects, got.Objects); diff != "" {
		t.Errorf("objects differ (-want +got):\n%s", diff)
	}
	if !got.SavedAt.Equal(world.SavedAt) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, world.SavedAt)
	}
}

func TestPlayerIndex(t *testing.T) {
	s := openTemp(t)
	if err := s.ImportFromDatabase(testWorld()); err != nil {
		t.Fatal(err)
	}
	if got := s.LookupPlayer("alice"); got != 2 {
		t.Errorf("LookupPlayer(alice) = %s, want #2", got)
	}
	if got := s.LookupPlayer("Limbo"); got != gamedb.Nothing {
		t.Errorf("rooms must not be indexed, got %s", got)
	}

	alice := s.DB().Objects[2]
	alice.Name = "Alicia"
	if err := s.UpdatePlayerIndex(alice, "Alice"); err != nil {
		t.Fatal(err)
	}
	if got := s.LookupPlayer("alice"); got != gamedb.Nothing {
		t.Errorf("old name still indexed: %s", got)
	}
	if got := s.LookupPlayer("ALICIA"); got != 2 {
		t.Errorf("LookupPlayer(ALICIA) = %s", got)
	}

	if err := s.DeleteObject(2); err != nil {
		t.Fatal(err)
	}
	if got := s.LookupPlayer("alicia"); got != gamedb.Nothing {
		t.Errorf("deleted player still indexed: %s", got)
	}
}

func TestSnapshotReplace(t *testing.T) {
	s := openTemp(t)
	if _, _, ok, err := s.Snapshot(); ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	stamp := time.Unix(1700000000, 0)
	if err := s.PutSnapshot([]byte("first"), stamp); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSnapshot([]byte("+V1\nsecond"), stamp.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	data, got, ok, err := s.Snapshot()
	if err != nil || !ok {
		t.Fatalf("Snapshot: ok=%v err=%v", ok, err)
	}
	if string(data) != "+V1\nsecond" {
		t.Errorf("data = %q", data)
	}
	if !got.Equal(stamp.Add(time.Hour)) {
		t.Errorf("stamp = %v", got)
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	s := openTemp(t)
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshot).Put(keySnapshot, []byte("not gob"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok, err := s.Snapshot(); ok || err == nil {
		t.Errorf("Snapshot of a corrupt record: ok=%v err=%v", ok, err)
	}
}

func TestBackup(t *testing.T) {
	s := openTemp(t)
	if err := s.ImportFromDatabase(testWorld()); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "backup.bolt")
	if err := s.Backup(dst); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	b, err := Open(dst)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer b.Close()
	if err := b.LoadAll(); err != nil {
		t.Fatal(err)
	}
	if len(b.DB().Objects) != 3 {
		t.Errorf("backup holds %d objects, want 3", len(b.DB().Objects))
	}
}

func TestRefKeyOrder(t *testing.T) {
	refs := []gamedb.DBRef{gamedb.NoPerm, gamedb.Nothing, 0, 1, 4096}
	for i := 1; i < len(refs); i++ {
		a, b := refToKey(refs[i-1]), refToKey(refs[i])
		if string(a) >= string(b) {
			t.Errorf("key(%s) >= key(%s)", refs[i-1], refs[i])
		}
	}
	for _, r := range refs {
		if got := keyToRef(refToKey(r)); got != r {
			t.Errorf("round trip %s -> %s", r, got)
		}
	}
}
