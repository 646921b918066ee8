package boltstore

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

// Store wraps a bbolt database and an in-memory cache of the world.
type Store struct {
	bolt  *bbolt.DB
	cache *gamedb.Database
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketPlayers, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{
		bolt:  db,
		cache: gamedb.NewDatabase(),
	}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// DB returns the in-memory database cache.
func (s *Store) DB() *gamedb.Database {
	return s.cache
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// PutObject persists a single object and its player index entry.
func (s *Store) PutObject(obj *gamedb.Object) error {
	return s.PutObjects(obj)
}

// PutObjects persists multiple objects in a single bbolt transaction.
func (s *Store) PutObjects(objs ...*gamedb.Object) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		players := tx.Bucket(bucketPlayers)
		for _, obj := range objs {
			if obj == nil {
				continue
			}
			data, err := encodeObject(obj)
			if err != nil {
				return fmt.Errorf("boltstore: encode object %s: %w", obj.DBRef, err)
			}
			if err := b.Put(refToKey(obj.DBRef), data); err != nil {
				return err
			}
			if obj.ObjType() == gamedb.TypePlayer && !obj.IsGoing() {
				if err := players.Put([]byte(strings.ToLower(obj.Name)), refToKey(obj.DBRef)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteObject removes an object and any player index entry pointing at it.
func (s *Store) DeleteObject(ref gamedb.DBRef) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Delete(refToKey(ref)); err != nil {
			return err
		}
		return deleteIndexFor(tx.Bucket(bucketPlayers), ref)
	})
}

func deleteIndexFor(b *bbolt.Bucket, ref gamedb.DBRef) error {
	want := refToKey(ref)
	var stale [][]byte
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if bytes.Equal(v, want) {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ImportFromDatabase bulk-loads an in-memory Database into bbolt, batching
// 1000 objects per transaction.
func (s *Store) ImportFromDatabase(db *gamedb.Database) error {
	s.cache = db

	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := b.Put(keyVersion, intToKey(storeVersion)); err != nil {
			return err
		}
		return b.Put(keySavedAt, intToKey(db.SavedAt.Unix()))
	})
	if err != nil {
		return fmt.Errorf("boltstore: import meta: %w", err)
	}

	batch := make([]*gamedb.Object, 0, 1000)
	count := 0
	for _, obj := range db.Objects {
		batch = append(batch, obj)
		if len(batch) >= 1000 {
			if err := s.PutObjects(batch...); err != nil {
				return err
			}
			count += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.PutObjects(batch...); err != nil {
			return err
		}
		count += len(batch)
	}

	log.Printf("boltstore: imported %d objects", count)
	return nil
}

// PutSavedAt records when the world was last saved.
func (s *Store) PutSavedAt(t time.Time) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySavedAt, intToKey(t.Unix()))
	})
	if err != nil {
		return fmt.Errorf("boltstore: put savedat: %w", err)
	}
	return nil
}

// LoadAll reads the entire bbolt database into the in-memory cache.
func (s *Store) LoadAll() error {
	count := 0
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySavedAt); v != nil {
			s.cache.SavedAt = time.Unix(keyToInt(v), 0)
		}
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("decode object %s: %w", keyToRef(k), err)
			}
			s.cache.Objects[obj.DBRef] = obj
			count++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltstore: load objects: %w", err)
	}

	log.Printf("boltstore: loaded %d objects from bolt", count)
	return nil
}

// LookupPlayer resolves a player name through the secondary index.
func (s *Store) LookupPlayer(name string) gamedb.DBRef {
	ref := gamedb.Nothing
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPlayers).Get([]byte(strings.ToLower(name))); v != nil {
			ref = keyToRef(v)
		}
		return nil
	})
	return ref
}

// UpdatePlayerIndex updates the player name→DBRef secondary index.
// If oldName is non-empty, the old entry is removed.
func (s *Store) UpdatePlayerIndex(obj *gamedb.Object, oldName string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		if oldName != "" {
			if err := b.Delete([]byte(strings.ToLower(oldName))); err != nil {
				return err
			}
		}
		if obj.ObjType() == gamedb.TypePlayer && !obj.IsGoing() {
			return b.Put([]byte(strings.ToLower(obj.Name)), refToKey(obj.DBRef))
		}
		return nil
	})
}

// Backup creates a hot copy of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// HasData returns true if the bbolt database contains any objects.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketObjects).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}

// --- Channel snapshot storage ---

// PutSnapshot stores the latest channel snapshot with the world timestamp
// it was written against. The previous snapshot is replaced.
func (s *Store) PutSnapshot(data []byte, stamp time.Time) error {
	v, err := encodeSnapshot(data, stamp)
	if err != nil {
		return fmt.Errorf("boltstore: encode snapshot: %w", err)
	}
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshot).Put(keySnapshot, v)
	})
	if err != nil {
		return fmt.Errorf("boltstore: put snapshot: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the stored channel snapshot. ok is false when
// none has been saved.
func (s *Store) Snapshot() (data []byte, stamp time.Time, ok bool, err error) {
	err = s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSnapshot).Get(keySnapshot)
		if v == nil {
			return nil
		}
		var derr error
		data, stamp, derr = decodeSnapshot(v)
		if derr != nil {
			return derr
		}
		ok = true
		return nil
	})
	if err != nil {
		err = fmt.Errorf("boltstore: read snapshot: %w", err)
	}
	return data, stamp, ok, err
}
