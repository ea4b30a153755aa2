package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var submissionBucket = []byte("submissions")

var errBucketMissing = errors.New("submission bucket missing")

// boltGuard keeps fingerprint -> expiry (big-endian unix nanoseconds) in one
// bucket. Expired entries are ignored on read and pruned whenever a new
// submission is marked, so the file never outgrows one TTL window.
type boltGuard struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func openBolt(path string, ttl time.Duration) (*boltGuard, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(submissionBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	return &boltGuard{db: db, ttl: ttl, now: time.Now}, nil
}

func (g *boltGuard) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Seen reports whether key was marked less than one TTL ago.
func (g *boltGuard) Seen(key string) (bool, error) {
	now := g.now()
	var live bool
	err := g.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(submissionBucket)
		if b == nil {
			return errBucketMissing
		}
		live = alive(b.Get([]byte(key)), now)
		return nil
	})
	return live, err
}

// Mark starts a fresh TTL window for key and drops every expired entry.
func (g *boltGuard) Mark(key string) error {
	now := g.now()
	return g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(submissionBucket)
		if b == nil {
			return errBucketMissing
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !alive(v, now) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}

		expiry := make([]byte, 8)
		binary.BigEndian.PutUint64(expiry, uint64(now.Add(g.ttl).UnixNano()))
		return b.Put([]byte(key), expiry)
	})
}

// alive reports whether an encoded expiry is still in the future. Values
// that do not decode count as expired.
func alive(value []byte, now time.Time) bool {
	if len(value) != 8 {
		return false
	}
	return int64(binary.BigEndian.Uint64(value)) > now.UnixNano()
}

func (g *boltGuard) size() (int, error) {
	n := 0
	err := g.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(submissionBucket).Stats().KeyN
		return nil
	})
	return n, err
}
