package raftlog

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func openTestEnv(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "raft.db"), 0600, nil)
	if err != nil {
		t.Fatalf("bolt.Open() error = %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLogs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		t.Fatalf("create buckets: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAppendAndGetLogEntry(t *testing.T) {
	db := openTestEnv(t)
	err := db.Update(func(tx *bolt.Tx) error {
		return appendLogEntry(tx, BlankEntry(1, 1))
	})
	if err != nil {
		t.Fatalf("appendLogEntry() error = %v", err)
	}

	var got *Entry
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		got, err = getLogEntry(tx, 1)
		return err
	})
	if err != nil {
		t.Fatalf("getLogEntry() error = %v", err)
	}
	if got == nil || got.Index != 1 || got.Term != 1 {
		t.Fatalf("getLogEntry() = %+v, want index=1 term=1", got)
	}
}

func TestAppendLogEntry_ConflictOnDifferentTerm(t *testing.T) {
	db := openTestEnv(t)
	err := db.Update(func(tx *bolt.Tx) error {
		return appendLogEntry(tx, BlankEntry(5, 2))
	})
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		return appendLogEntry(tx, BlankEntry(5, 3))
	})
	if err == nil {
		t.Fatal("expected conflict error for differing term at same index")
	}
	if !IsKind(err, TransactionFailure) {
		t.Errorf("expected TransactionFailure, got %v", err)
	}
}

func TestDeleteLogsFrom_HalfOpen(t *testing.T) {
	db := openTestEnv(t)
	err := db.Update(func(tx *bolt.Tx) error {
		for i := uint64(1); i <= 5; i++ {
			if err := appendLogEntry(tx, BlankEntry(i, 1)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed entries failed: %v", err)
	}

	stop := uint64(4)
	err = db.Update(func(tx *bolt.Tx) error {
		return deleteLogsFrom(tx, 2, &stop)
	})
	if err != nil {
		t.Fatalf("deleteLogsFrom() error = %v", err)
	}

	var remaining []Entry
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		remaining, err = rangeLogEntries(tx, 0, 10)
		return err
	})
	if err != nil {
		t.Fatalf("rangeLogEntries() error = %v", err)
	}

	wantIndexes := []uint64{1, 4, 5}
	if len(remaining) != len(wantIndexes) {
		t.Fatalf("remaining = %v, want indexes %v", remaining, wantIndexes)
	}
	for i, e := range remaining {
		if e.Index != wantIndexes[i] {
			t.Errorf("remaining[%d].Index = %d, want %d", i, e.Index, wantIndexes[i])
		}
	}
}

func TestDeleteLogsUpTo_Inclusive(t *testing.T) {
	db := openTestEnv(t)
	err := db.Update(func(tx *bolt.Tx) error {
		for i := uint64(1); i <= 5; i++ {
			if err := appendLogEntry(tx, BlankEntry(i, 1)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed entries failed: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		return deleteLogsUpTo(tx, 3)
	})
	if err != nil {
		t.Fatalf("deleteLogsUpTo() error = %v", err)
	}

	var first uint64
	var ok bool
	err = db.View(func(tx *bolt.Tx) error {
		first, ok = firstLogIndex(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("view error = %v", err)
	}
	if !ok || first != 4 {
		t.Errorf("firstLogIndex() = (%d, %v), want (4, true)", first, ok)
	}
}

func TestLastLogEntry_EmptyLog(t *testing.T) {
	db := openTestEnv(t)
	var got *Entry
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		got, err = lastLogEntry(tx)
		return err
	})
	if err != nil {
		t.Fatalf("lastLogEntry() error = %v", err)
	}
	if got != nil {
		t.Errorf("lastLogEntry() on empty log = %+v, want nil", got)
	}
}
