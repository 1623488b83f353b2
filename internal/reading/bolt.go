package reading

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "readings"

var _ Store = (*BoltStore)(nil)

// boltRecord is the stored form of a reading; unlike Reading it keeps the owner
type boltRecord struct {
	ID          string    `json:"id"`
	MeterNumber string    `json:"meter_number"`
	Value       int64     `json:"reading"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b boltRecord) reading() *Reading {
	return &Reading{
		ID:          b.ID,
		MeterNumber: b.MeterNumber,
		Value:       b.Value,
		PhotoURL:    b.PhotoURL,
		UserID:      b.UserID,
		CreatedAt:   b.CreatedAt,
	}
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens the BoltDB file at path and creates the readings bucket
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// List returns the readings owned by userID, newest first
func (b *BoltStore) List(_ context.Context, userID string) ([]*Reading, error) {
	readings := make([]*Reading, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling reading: %w", err)
			}
			if rec.UserID == userID {
				readings = append(readings, rec.reading())
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Bolt iterates in key order, which for UUIDs is arbitrary
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].CreatedAt.After(readings[j].CreatedAt)
	})
	return readings, nil
}

// Create saves a reading under its ID
func (b *BoltStore) Create(_ context.Context, r *Reading) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return putRecord(bucket, boltRecord{
			ID:          r.ID,
			MeterNumber: r.MeterNumber,
			Value:       r.Value,
			PhotoURL:    r.PhotoURL,
			UserID:      r.UserID,
			CreatedAt:   r.CreatedAt,
		})
	})
}

// Update replaces meter number and value of an existing reading
func (b *BoltStore) Update(_ context.Context, id, meterNumber string, value int64) (*Reading, error) {
	var updated *Reading
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var rec boltRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshaling reading: %w", err)
		}
		rec.MeterNumber = meterNumber
		rec.Value = value
		if err := putRecord(bucket, rec); err != nil {
			return err
		}
		updated = rec.reading()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a reading from the database
func (b *BoltStore) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func putRecord(bucket *bbolt.Bucket, rec boltRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling reading: %w", err)
	}
	return bucket.Put([]byte(rec.ID), data)
}
