package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Dan9191/securelink/internal/models"
	bolt "github.com/boltdb/bolt"
)

const ringsBucket = "rings"

// BoltArchive archives rings in a single BoltDB file, JSON-encoded by ring ID
type BoltArchive struct {
	db       *bolt.DB
	tokenKey []byte
}

// NewBoltArchive opens (or creates) the archive at path
func NewBoltArchive(path string, tokenKey []byte) (*BoltArchive, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ringsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rings bucket: %w", err)
	}
	return &BoltArchive{db: db, tokenKey: tokenKey}, nil
}

// SaveRing stores the ring, merging into an existing record with the same ID.
// Saving the same ring twice leaves the file untouched.
func (a *BoltArchive) SaveRing(ctx context.Context, ring *models.FraudRing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := NewRingRecord(ring, a.tokenKey)
	if err != nil {
		return err
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(ringsBucket))

		if existing := b.Get([]byte(rec.ID)); existing != nil {
			var stored RingRecord
			if err := json.Unmarshal(existing, &stored); err != nil {
				return fmt.Errorf("failed to decode ring %s: %w", rec.ID, err)
			}
			before := len(stored.Members) + len(stored.BanksInvolved)
			stored.merge(rec)
			if len(stored.Members)+len(stored.BanksInvolved) == before {
				return nil
			}
			rec = stored
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode ring %s: %w", rec.ID, err)
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// GetRing returns one archived ring or ErrNotFound
func (a *BoltArchive) GetRing(id string) (*RingRecord, error) {
	var rec RingRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(ringsBucket)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRings returns archived rings oldest first
func (a *BoltArchive) ListRings(ctx context.Context) ([]RingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := []RingRecord{}
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ringsBucket)).ForEach(func(k, v []byte) error {
			var rec RingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode ring %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Close releases the database file lock
func (a *BoltArchive) Close() error {
	return a.db.Close()
}
