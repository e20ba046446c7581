package searchdb

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketIndexes  = []byte("indexes")
	bucketSettings = []byte("settings")
	bucketTasks    = []byte("tasks")
)

func documentsBucketName(uid string) []byte {
	return []byte("documents:" + uid)
}

// IndexInfo describes an index as requested by a CreateIndex command.
type IndexInfo struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primary_key,omitempty"`
}

// IndexMetadata is the durable record of an index, returned on success by
// CreateIndex and UpdateIndex.
type IndexMetadata struct {
	UID        string    `json:"uid"`
	PrimaryKey string    `json:"primary_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IndexUpdate carries a partial update to an index's primary key.
type IndexUpdate struct {
	PrimaryKey *string `json:"primary_key,omitempty"`
}

// Settings holds the tunable configuration of an index (ranking rules,
// searchable/displayed attributes, stop words, synonyms). The field set is
// intentionally small: it exercises the SettingsUpdate command without
// reimplementing a full search-relevance engine.
type Settings struct {
	RankingRules         []string            `json:"ranking_rules,omitempty"`
	SearchableAttributes []string            `json:"searchable_attributes,omitempty"`
	DisplayedAttributes  []string            `json:"displayed_attributes,omitempty"`
	StopWords            []string            `json:"stop_words,omitempty"`
	Synonyms             map[string][]string `json:"synonyms,omitempty"`
}

// Document is a single JSON-object document, keyed internally by the
// index's primary key field.
type Document map[string]interface{}

// TaskStatus is the terminal state of an asynchronous-looking mutation.
// Every command in this engine is actually applied synchronously (there is
// no background indexer to hand work to), but the task-id contract from
// the original application is preserved so replicated responses keep the
// same shape.
type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task records the outcome of one mutating command.
type Task struct {
	ID        uint64     `json:"id"`
	IndexUID  string     `json:"index_uid"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}

// Engine is the embedded document-index database. It is safe for
// concurrent use by multiple goroutines.
type Engine struct {
	db       *bolt.DB
	path     string
	nextTask atomic.Uint64
	readers  atomic.Int64
}

// Open opens (creating if necessary) the search database rooted at dir.
func Open(dir string) (*Engine, error) {
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("searchdb: create data dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "search.db"), 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("searchdb: open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketIndexes, bucketSettings, bucketTasks} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Engine{db: db, path: dir}, nil
}

// Path returns the directory the engine was opened from.
func (e *Engine) Path() string { return e.path }

// Acquire registers a reader against the engine. Callers must pair every
// Acquire with a Release. This is what lets the facade's background
// releaser know when it is safe to close a swapped-out engine.
func (e *Engine) Acquire() { e.readers.Add(1) }

// Release unregisters a reader previously registered with Acquire.
func (e *Engine) Release() { e.readers.Add(-1) }

// ReaderCount reports the number of outstanding Acquire calls not yet
// matched by Release.
func (e *Engine) ReaderCount() int64 { return e.readers.Load() }

// Close closes the underlying bbolt environment. Callers must ensure
// ReaderCount() is zero first; Close does not wait.
func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) nextTaskID() uint64 {
	return e.nextTask.Add(1)
}

func (e *Engine) recordTask(tx *bolt.Tx, t Task) error {
	b := tx.Bucket(bucketTasks)
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.Put(taskKey(t.ID), data)
}

func taskKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

// TaskCounts tallies recorded tasks by terminal status, for metrics
// reporting.
func (e *Engine) TaskCounts() (map[TaskStatus]int, error) {
	counts := make(map[TaskStatus]int)
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			var t Task
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			counts[t.Status]++
			return nil
		})
	})
	return counts, err
}

// GetTask looks up a previously recorded task by id.
func (e *Engine) GetTask(id uint64) (Task, bool, error) {
	var t Task
	found := false
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTasks).Get(taskKey(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &t)
	})
	return t, found, err
}
