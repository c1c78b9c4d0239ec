package history

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "history"

// BoltKV implements the KV interface using BoltDB
type BoltKV struct {
	db *bbolt.DB
}

// NewBoltKV opens (or creates) a BoltDB file
func NewBoltKV(path string) (*BoltKV, error) {
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
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltKV{db: db}, nil
}

// Put stores value under key
func (b *BoltKV) Put(key string, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), value)
	})
}

// Get retrieves the value under key
func (b *BoltKV) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		// bbolt memory is only valid for the life of the transaction
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes key
func (b *BoltKV) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Close closes the database
func (b *BoltKV) Close() error {
	return b.db.Close()
}
