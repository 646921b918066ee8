package boltstore

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

func init() {
	gob.Register(gamedb.Object{})
	gob.Register(gamedb.Attribute{})
}

// encodeObject serializes an Object to bytes using gob.
func encodeObject(obj *gamedb.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeObject deserializes bytes back into an Object.
func decodeObject(data []byte) (*gamedb.Object, error) {
	var obj gamedb.Object
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// snapshotRecord is the value kept under the snapshot key: the channel
// snapshot bytes and the world timestamp they were written against.
type snapshotRecord struct {
	Data  []byte
	Stamp int64
}

func encodeSnapshot(data []byte, stamp time.Time) ([]byte, error) {
	var buf bytes.Buffer
	rec := snapshotRecord{Data: data, Stamp: stamp.Unix()}
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot returns copies, so the result outlives the bolt transaction.
func decodeSnapshot(v []byte) ([]byte, time.Time, error) {
	var rec snapshotRecord
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
		return nil, time.Time{}, err
	}
	return rec.Data, time.Unix(rec.Stamp, 0), nil
}
