package searchdb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// CreateIndex creates a new index with the given configuration. It fails if
// an index with the same uid already exists.
func (e *Engine) CreateIndex(info IndexInfo) (IndexMetadata, error) {
	var meta IndexMetadata
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		if b.Get([]byte(info.UID)) != nil {
			return fmt.Errorf("index already exists: %s", info.UID)
		}
		now := time.Now().UTC()
		meta = IndexMetadata{
			UID:        info.UID,
			PrimaryKey: info.PrimaryKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(info.UID), data); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(documentsBucketName(info.UID))
		return err
	})
	return meta, err
}

// UpdateIndex applies a partial configuration update to an existing index.
func (e *Engine) UpdateIndex(uid string, update IndexUpdate) (IndexMetadata, error) {
	var meta IndexMetadata
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		data := b.Get([]byte(uid))
		if data == nil {
			return fmt.Errorf("index not found: %s", uid)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		if update.PrimaryKey != nil {
			meta.PrimaryKey = *update.PrimaryKey
		}
		meta.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return b.Put([]byte(uid), out)
	})
	return meta, err
}

// GetIndex returns the metadata for an index.
func (e *Engine) GetIndex(uid string) (IndexMetadata, bool, error) {
	var meta IndexMetadata
	found := false
	err := e.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketIndexes).Get([]byte(uid))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &meta)
	})
	return meta, found, err
}

// DeleteIndex removes an index and every document it contains.
func (e *Engine) DeleteIndex(uid string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		if b.Get([]byte(uid)) == nil {
			return fmt.Errorf("index not found: %s", uid)
		}
		if err := b.Delete([]byte(uid)); err != nil {
			return err
		}
		if err := tx.DeleteBucket(documentsBucketName(uid)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return tx.Bucket(bucketSettings).Delete([]byte(uid))
	})
}

// ListIndexes returns every index's metadata, for use by snapshot/restore
// verification and tests.
func (e *Engine) ListIndexes() ([]IndexMetadata, error) {
	var metas []IndexMetadata
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexes).ForEach(func(_, v []byte) error {
			var m IndexMetadata
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			metas = append(metas, m)
			return nil
		})
	})
	return metas, err
}

// UpdateSettings replaces (merging where set) the settings of an index. It
// returns the id of the task recording this mutation, mirroring
// AddDocuments/DeleteDocuments/ClearAllDocuments: an unknown index is still
// committed as a failed task rather than aborting the transaction, and
// UpdateSettings returns a taskFailedError wrapping the rejection reason.
func (e *Engine) UpdateSettings(uid string, update Settings) (uint64, error) {
	taskID := e.nextTaskID()
	var appErr error
	err := e.db.Update(func(tx *bolt.Tx) error {
		ib := tx.Bucket(bucketIndexes)
		if ib.Get([]byte(uid)) == nil {
			appErr = fmt.Errorf("index not found: %s", uid)
			return e.failTask(tx, taskID, uid, "settings-update", appErr)
		}
		var settings Settings
		sb := tx.Bucket(bucketSettings)
		if existing := sb.Get([]byte(uid)); existing != nil {
			if err := json.Unmarshal(existing, &settings); err != nil {
				return err
			}
		}
		if update.RankingRules != nil {
			settings.RankingRules = update.RankingRules
		}
		if update.SearchableAttributes != nil {
			settings.SearchableAttributes = update.SearchableAttributes
		}
		if update.DisplayedAttributes != nil {
			settings.DisplayedAttributes = update.DisplayedAttributes
		}
		if update.StopWords != nil {
			settings.StopWords = update.StopWords
		}
		if update.Synonyms != nil {
			settings.Synonyms = update.Synonyms
		}
		data, err := json.Marshal(settings)
		if err != nil {
			return err
		}
		if err := sb.Put([]byte(uid), data); err != nil {
			return err
		}
		return e.succeedTask(tx, taskID, uid, "settings-update")
	})
	if err != nil {
		return taskID, err
	}
	if appErr != nil {
		return taskID, taskFailedError{cause: appErr}
	}
	return taskID, nil
}

// GetSettings returns the current settings for an index.
func (e *Engine) GetSettings(uid string) (Settings, error) {
	var settings Settings
	err := e.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(uid))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &settings)
	})
	return settings, err
}
