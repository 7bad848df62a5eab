package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")
	keyLatest  = []byte("latest")
)

// ErrRunNotFound is returned when an archive holds no matching run.
var ErrRunNotFound = errors.New("run not found")

// Store archives finished crawl runs.
type Store interface {
	Save(record *RunRecord) error
	Load(id string) (*RunRecord, error)
	Latest() (*RunRecord, error)
	List() ([]*RunRecord, error)
	Close() error
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the archive at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save stores record under its ID and marks it as the latest run.
func (s *BoltStore) Save(record *RunRecord) error {
	if record.ID == "" {
		return errors.New("run record has no id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put([]byte(record.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyLatest, []byte(record.ID))
	})
}

// Load returns the run stored under id.
func (s *BoltStore) Load(id string) (*RunRecord, error) {
	var record RunRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(id))
		if data == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Latest returns the most recently saved run.
func (s *BoltStore) Latest() (*RunRecord, error) {
	var id []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyLatest); v != nil {
			id = append(id, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrRunNotFound
	}

	return s.Load(string(id))
}

// List returns every archived run, oldest first.
func (s *BoltStore) List() ([]*RunRecord, error) {
	var records []*RunRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(_, v []byte) error {
			var record RunRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortRecords(records)
	return records, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func sortRecords(records []*RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
