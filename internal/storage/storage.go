// Package storage remembers recent submissions so the CLI can refuse an
// accidental double submit. The bounce client itself never touches it.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store tracks submission fingerprints. A fingerprint counts as seen for TTL
// after it was marked; past that it is as if it had never been submitted.
type Store interface {
	Close() error
	Seen(key string) (bool, error)
	Mark(key string) error
}

// Options configures a Store.
type Options struct {
	TTL time.Duration
}

const defaultTTL = 10 * time.Minute

// NewStore opens the guard named by typ: "none" (default) or "bbolt".
func NewStore(typ, path string, opts Options) (Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}

	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		guard, err := openBolt(path, opts.TTL)
		if err != nil {
			return nil, err
		}
		return guard, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Close() error              { return nil }
func (noopStore) Seen(string) (bool, error) { return false, nil }
func (noopStore) Mark(string) error         { return nil }
