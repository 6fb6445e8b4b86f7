// Package storage keeps the history of model artifacts the service has loaded.
// It uses BoltDB as the underlying storage engine. Only model metadata is
// stored; applications and decisions are never persisted.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	modelsBucket = "models" // Bucket name for model load records
	dbFile       = "loan-predictor.db"
)

// ModelRecord describes one model load.
type ModelRecord struct {
	Path                  string    `json:"path"`
	Version               string    `json:"version"`
	ModelType             string    `json:"model_type"`
	Checksum              string    `json:"checksum"`
	Features              int       `json:"features"`
	HasDeclaredSchema     bool      `json:"has_declared_schema"`
	SupportsProbabilities bool      `json:"supports_probabilities"`
	UnmappedFeatures      []string  `json:"unmapped_features,omitempty"`
	LoadedAt              time.Time `json:"loaded_at"`
}

// Store provides persistent storage for model load history using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database under dataPath and ensures its buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// recordKey sorts chronologically: zero-padded nanoseconds compare bytewise.
func recordKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}

// RecordModelLoad appends a load record. LoadedAt defaults to now.
func (s *Store) RecordModelLoad(rec ModelRecord) error {
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))

		key := recordKey(rec.LoadedAt)
		// Two loads in the same nanosecond would collide; bump until free.
		for b.Get(key) != nil {
			rec.LoadedAt = rec.LoadedAt.Add(time.Nanosecond)
			key = recordKey(rec.LoadedAt)
		}

		// Marshal after the key is final so loaded_at matches it.
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal model record: %w", err)
		}
		return b.Put(key, data)
	})
}

// ModelLoads returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) ModelLoads(limit int) ([]ModelRecord, error) {
	var records []ModelRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(modelsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec ModelRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})

	return records, err
}

// LastModelLoad returns the most recent record, or ok=false when there is none.
func (s *Store) LastModelLoad() (ModelRecord, bool, error) {
	records, err := s.ModelLoads(1)
	if err != nil || len(records) == 0 {
		return ModelRecord{}, false, err
	}
	return records[0], true, nil
}
