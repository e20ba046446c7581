package searchdb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// AddDocuments parses a JSON array of documents and stores them, keyed by
// the index's primary key field (falling back to a synthetic "id" field
// when unset, mirroring the source engine's auto-id behaviour). When
// partial is true, existing documents are merged at field granularity
// instead of being replaced outright. It returns the id of the task
// recording this mutation. A rejected command (unknown index, missing
// primary key) is still committed as a failed task; AddDocuments then
// returns a taskFailedError wrapping the rejection reason so callers can
// tell it apart from a storage failure with IsApplicationError.
func (e *Engine) AddDocuments(uid string, documents []Document, partial bool) (uint64, error) {
	taskID := e.nextTaskID()
	var appErr error
	err := e.db.Update(func(tx *bolt.Tx) error {
		ib := tx.Bucket(bucketIndexes)
		metaRaw := ib.Get([]byte(uid))
		if metaRaw == nil {
			appErr = fmt.Errorf("index not found: %s", uid)
			return e.failTask(tx, taskID, uid, "documents-addition", appErr)
		}
		var meta IndexMetadata
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return err
		}
		pk := meta.PrimaryKey
		if pk == "" {
			pk = "id"
		}
		db := tx.Bucket(documentsBucketName(uid))
		if db == nil {
			appErr = fmt.Errorf("index not found: %s", uid)
			return e.failTask(tx, taskID, uid, "documents-addition", appErr)
		}
		for _, doc := range documents {
			idVal, ok := doc[pk]
			if !ok {
				appErr = fmt.Errorf("document missing primary key %q", pk)
				return e.failTask(tx, taskID, uid, "documents-addition", appErr)
			}
			key := []byte(fmt.Sprintf("%v", idVal))
			if partial {
				if existing := db.Get(key); existing != nil {
					var merged Document
					if err := json.Unmarshal(existing, &merged); err != nil {
						return err
					}
					for k, v := range doc {
						merged[k] = v
					}
					doc = merged
				}
			}
			data, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := db.Put(key, data); err != nil {
				return err
			}
		}
		return e.succeedTask(tx, taskID, uid, "documents-addition")
	})
	if err != nil {
		return taskID, err
	}
	if appErr != nil {
		return taskID, taskFailedError{cause: appErr}
	}
	return taskID, nil
}

// DeleteDocuments removes the listed document ids from an index.
func (e *Engine) DeleteDocuments(uid string, ids []string) (uint64, error) {
	taskID := e.nextTaskID()
	var appErr error
	err := e.db.Update(func(tx *bolt.Tx) error {
		db := tx.Bucket(documentsBucketName(uid))
		if db == nil {
			appErr = fmt.Errorf("index not found: %s", uid)
			return e.failTask(tx, taskID, uid, "documents-deletion", appErr)
		}
		for _, id := range ids {
			if err := db.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return e.succeedTask(tx, taskID, uid, "documents-deletion")
	})
	if err != nil {
		return taskID, err
	}
	if appErr != nil {
		return taskID, taskFailedError{cause: appErr}
	}
	return taskID, nil
}

// ClearAllDocuments removes every document from an index without deleting
// the index itself.
func (e *Engine) ClearAllDocuments(uid string) (uint64, error) {
	taskID := e.nextTaskID()
	var appErr error
	err := e.db.Update(func(tx *bolt.Tx) error {
		name := documentsBucketName(uid)
		if tx.Bucket(name) == nil {
			appErr = fmt.Errorf("index not found: %s", uid)
			return e.failTask(tx, taskID, uid, "clear-all-documents", appErr)
		}
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
		return e.succeedTask(tx, taskID, uid, "clear-all-documents")
	})
	if err != nil {
		return taskID, err
	}
	if appErr != nil {
		return taskID, taskFailedError{cause: appErr}
	}
	return taskID, nil
}

// GetDocument fetches a single document by id.
func (e *Engine) GetDocument(uid, id string) (Document, bool, error) {
	var doc Document
	found := false
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucketName(uid))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &doc)
	})
	return doc, found, err
}

// ListDocuments returns every document in an index. Intended for tests and
// snapshot verification, not for production query paths.
func (e *Engine) ListDocuments(uid string) ([]Document, error) {
	var docs []Document
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucketName(uid))
		if b == nil {
			return fmt.Errorf("index not found: %s", uid)
		}
		return b.ForEach(func(_, v []byte) error {
			var d Document
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			docs = append(docs, d)
			return nil
		})
	})
	return docs, err
}

func (e *Engine) succeedTask(tx *bolt.Tx, id uint64, uid, kind string) error {
	return e.recordTask(tx, Task{
		ID: id, IndexUID: uid, Status: TaskSucceeded, Type: kind, CreatedAt: time.Now().UTC(),
	})
}

// failTask records a failed task within the current (still-committing)
// transaction. It never itself returns a non-nil error on the happy path:
// doing so would abort the transaction and lose the failure record, which
// is exactly the determinism bug the Command/Response split in pkg/raftlog
// exists to avoid.
func (e *Engine) failTask(tx *bolt.Tx, id uint64, uid, kind string, cause error) error {
	return e.recordTask(tx, Task{
		ID: id, IndexUID: uid, Status: TaskFailed, Type: kind, Error: cause.Error(), CreatedAt: time.Now().UTC(),
	})
}

// taskFailedError lets callers in pkg/raftlog distinguish an
// application-level rejection (recorded as a failed task, not a
// transaction abort) from an infrastructure error. See errors.go.
type taskFailedError struct{ cause error }

func (e taskFailedError) Error() string { return e.cause.Error() }
func (e taskFailedError) Unwrap() error { return e.cause }

// IsApplicationError reports whether err represents a rejected command
// that was still durably recorded (as a failed task) rather than aborting
// the whole transaction.
func IsApplicationError(err error) bool {
	_, ok := err.(taskFailedError)
	return ok
}
