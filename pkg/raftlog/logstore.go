package raftlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketLogs = []byte("logs")

func logKey(index uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return buf
}

func logIndexFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(data, &e)
	return e, err
}

// appendLogEntry writes entry at its own Index within tx, failing with a
// TransactionFailure conflict error if a different-term entry already
// occupies that index. The
// caller is expected to have already deleted the conflicting tail via
// deleteLogsFrom when intentionally overwriting it (AppendEntries receiver
// step 3 in the Raft paper).
func appendLogEntry(tx *bolt.Tx, entry Entry) error {
	b := tx.Bucket(bucketLogs)
	key := logKey(entry.Index)
	if existing := b.Get(key); existing != nil {
		prev, err := decodeEntry(existing)
		if err != nil {
			return wrapErr(DeserializationError, err)
		}
		if prev.Term != entry.Term {
			return wrapErr(TransactionFailure,
				fmt.Errorf("conflict at index %d: existing term %d, new term %d", entry.Index, prev.Term, entry.Term))
		}
	}
	data, err := encodeEntry(entry)
	if err != nil {
		return wrapErr(DeserializationError, err)
	}
	return wrapErr(TransactionFailure, b.Put(key, data))
}

// getLogEntry fetches the entry at index, or nil if absent.
func getLogEntry(tx *bolt.Tx, index uint64) (*Entry, error) {
	data := tx.Bucket(bucketLogs).Get(logKey(index))
	if data == nil {
		return nil, nil
	}
	e, err := decodeEntry(data)
	if err != nil {
		return nil, wrapErr(DeserializationError, err)
	}
	return &e, nil
}

// rangeLogEntries returns every entry in [start, stop] (inclusive both
// ends), in ascending index order.
func rangeLogEntries(tx *bolt.Tx, start, stop uint64) ([]Entry, error) {
	var entries []Entry
	c := tx.Bucket(bucketLogs).Cursor()
	for k, v := c.Seek(logKey(start)); k != nil && logIndexFromKey(k) <= stop; k, v = c.Next() {
		e, err := decodeEntry(v)
		if err != nil {
			return nil, wrapErr(DeserializationError, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// lastLogEntry returns the highest-indexed entry in the log, or nil if the
// log is empty.
func lastLogEntry(tx *bolt.Tx) (*Entry, error) {
	_, v := tx.Bucket(bucketLogs).Cursor().Last()
	if v == nil {
		return nil, nil
	}
	e, err := decodeEntry(v)
	if err != nil {
		return nil, wrapErr(DeserializationError, err)
	}
	return &e, nil
}

// deleteLogsFrom deletes entries in [start, stop) when stop is given, else
// [start, +inf). This half-open convention is deliberate and distinct
// from deleteLogsUpTo's inclusive convention: see the Open Question this
// asymmetry is grounded on.
func deleteLogsFrom(tx *bolt.Tx, start uint64, stop *uint64) error {
	c := tx.Bucket(bucketLogs).Cursor()
	for k, _ := c.Seek(logKey(start)); k != nil; k, _ = c.Next() {
		idx := logIndexFromKey(k)
		if stop != nil && idx >= *stop {
			break
		}
		if err := c.Delete(); err != nil {
			return wrapErr(TransactionFailure, err)
		}
	}
	return nil
}

// deleteLogsUpTo deletes every entry with index <= through (inclusive),
// used by compaction only.
func deleteLogsUpTo(tx *bolt.Tx, through uint64) error {
	c := tx.Bucket(bucketLogs).Cursor()
	for k, _ := c.First(); k != nil && logIndexFromKey(k) <= through; k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return wrapErr(TransactionFailure, err)
		}
	}
	return nil
}

// firstLogIndex returns the lowest index present in the log, and whether
// the log is non-empty.
func firstLogIndex(tx *bolt.Tx) (uint64, bool) {
	k, _ := tx.Bucket(bucketLogs).Cursor().First()
	if k == nil {
		return 0, false
	}
	return logIndexFromKey(k), true
}
