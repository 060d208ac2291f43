// Package delivery remembers which push triggers have already been
// processed, so a redelivered webhook does not open a second pull request.
package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "push_deliveries"

type entry struct {
	ClaimedAt time.Time `json:"claimed_at"`
	RunID     string    `json:"run_id,omitempty"`
}

// Tracker is a bbolt-backed set of claimed (project, before, after) triples.
// Claims older than the TTL are treated as absent.
type Tracker struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the tracker database at path. A ttl of zero keeps
// claims forever.
func Open(path string, ttl time.Duration) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create delivery directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open delivery db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init delivery bucket: %w", err)
	}
	return &Tracker{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Key identifies one push.
func Key(projectID, before, after string) string {
	return projectID + "\x00" + before + "\x00" + after
}

// Claim records key for runID unless a live claim already exists. It
// reports whether the caller now owns the delivery.
func (t *Tracker) Claim(key, runID string) (bool, error) {
	claimed := false
	err := t.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if data := bucket.Get([]byte(key)); data != nil {
			var e entry
			if err := json.Unmarshal(data, &e); err == nil && !t.expired(e) {
				return nil
			}
		}
		data, err := json.Marshal(entry{ClaimedAt: t.now().UTC(), RunID: runID})
		if err != nil {
			return err
		}
		claimed = true
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return false, fmt.Errorf("claim delivery: %w", err)
	}
	return claimed, nil
}

// Release drops a claim so the same push can be processed again. Runs that
// fail release their claim; the next delivery is the retry.
func (t *Tracker) Release(key string) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Prune deletes expired claims and returns how many were removed.
func (t *Tracker) Prune() (int, error) {
	if t.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := t.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || t.expired(e) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (t *Tracker) expired(e entry) bool {
	return t.ttl > 0 && t.now().Sub(e.ClaimedAt) > t.ttl
}
