package cache

import "github.com/charmbracelet/log"

// Tiered checks memory before disk and promotes disk hits into memory.
// Disk may be nil.
type Tiered struct {
	Memory *Memory
	Disk   *Disk
}

// Get looks up key in memory, then on disk.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.Memory.Get(key); ok {
		return v, true
	}
	if t.Disk == nil {
		return nil, false
	}
	v, ok := t.Disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := t.Memory.Put(key, v); err != nil {
		log.Debug("Not promoting cache entry", "key", key, "error", err)
	}
	return v, true
}

// Put writes key to both tiers. A value too large for memory still goes to disk.
func (t *Tiered) Put(key string, value []byte) error {
	memErr := t.Memory.Put(key, value)
	if t.Disk == nil {
		return memErr
	}
	return t.Disk.Put(key, value)
}

// Close closes the disk tier.
func (t *Tiered) Close() error {
	if t.Disk == nil {
		return nil
	}
	return t.Disk.Close()
}
