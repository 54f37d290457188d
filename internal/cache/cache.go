package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCorrupted is returned when a stored item cannot be read back.
	ErrCorrupted = errors.New("cache data corrupted")
)

// Cache stores byte values by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Key derives the cache key of a synthesis request. Whitespace runs in text
// are collapsed so that reflowed copies of a summary share audio.
func Key(text, voice string, pitch float64) string {
	normalized := strings.Join(strings.Fields(text), " ")
	data := fmt.Sprintf("%s|%s|%.2f", normalized, voice, pitch)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
