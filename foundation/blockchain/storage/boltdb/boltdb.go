// Package boltdb implements the ability to read and write documents to a
// single bolt file with a bucket per collection.
package boltdb

import (
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/boltdb/bolt"
)

// Bolt represents the serialization implementation for reading and storing
// documents in a bolt database. This implements the database.Storage
// interface.
type Bolt struct {
	db *bolt.DB
}

// New opens or creates the bolt file at the specified path.
func New(dbFile string) (*Bolt, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the bolt file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Put stores the document under the key in the collection bucket.
func (b *Bolt) Put(collection string, key string, body []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}

		return bucket.Put([]byte(key), body)
	})
}

// Get returns the document stored under the key in the collection bucket.
func (b *Bolt) Get(collection string, key string) ([]byte, error) {
	var body []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return database.ErrNotFound
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			return database.ErrNotFound
		}

		// The value is only valid for the life of the transaction.
		body = append([]byte(nil), value...)
		return nil
	})

	return body, err
}

// Delete removes the documents with the specified keys in one transaction.
func (b *Bolt) Delete(collection string, keys ...string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}

		return nil
	})
}

// List returns every document in the collection. Bolt keeps keys sorted so
// the cursor walks them in key order.
func (b *Bolt) List(collection string) ([]database.Document, error) {
	var docs []database.Document

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			docs = append(docs, database.Document{
				Key:  string(k),
				Body: append([]byte(nil), v...),
			})
		}

		return nil
	})

	return docs, err
}

// Reset drops every bucket in the file.
func (b *Bolt) Reset() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}

		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}

		return nil
	})
}
