package raftlog

import (
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

var bucketMeta = []byte("meta")

// Metadata key strings are part of the persisted format; renaming them
// breaks on-disk compatibility with existing data directories.
const (
	keyHardState     = "hard_state"
	keyLastCommitted = "last_commited"
	keyMembership    = "membership"
	keySnapshotPath  = "snapshot_path"
)

func getHardState(tx *bolt.Tx) (*HardState, error) {
	data := tx.Bucket(bucketMeta).Get([]byte(keyHardState))
	if data == nil {
		return nil, nil
	}
	var hs HardState
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, wrapErr(DeserializationError, err)
	}
	return &hs, nil
}

func setHardState(tx *bolt.Tx, hs HardState) error {
	data, err := json.Marshal(hs)
	if err != nil {
		return wrapErr(DeserializationError, err)
	}
	return wrapErr(TransactionFailure, tx.Bucket(bucketMeta).Put([]byte(keyHardState), data))
}

func getMembership(tx *bolt.Tx) (*Membership, error) {
	data := tx.Bucket(bucketMeta).Get([]byte(keyMembership))
	if data == nil {
		return nil, nil
	}
	var m Membership
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, wrapErr(DeserializationError, err)
	}
	return &m, nil
}

func setMembership(tx *bolt.Tx, m Membership) error {
	data, err := json.Marshal(m)
	if err != nil {
		return wrapErr(DeserializationError, err)
	}
	return wrapErr(TransactionFailure, tx.Bucket(bucketMeta).Put([]byte(keyMembership), data))
}

func getLastApplied(tx *bolt.Tx) uint64 {
	data := tx.Bucket(bucketMeta).Get([]byte(keyLastCommitted))
	if data == nil {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func setLastApplied(tx *bolt.Tx, index uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return wrapErr(TransactionFailure, tx.Bucket(bucketMeta).Put([]byte(keyLastCommitted), buf))
}

func getSnapshotDescriptor(tx *bolt.Tx) (*SnapshotDescriptor, error) {
	data := tx.Bucket(bucketMeta).Get([]byte(keySnapshotPath))
	if data == nil {
		return nil, nil
	}
	var sd SnapshotDescriptor
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, wrapErr(DeserializationError, err)
	}
	return &sd, nil
}

func setSnapshotDescriptor(tx *bolt.Tx, sd SnapshotDescriptor) error {
	data, err := json.Marshal(sd)
	if err != nil {
		return wrapErr(DeserializationError, err)
	}
	return wrapErr(TransactionFailure, tx.Bucket(bucketMeta).Put([]byte(keySnapshotPath), data))
}
