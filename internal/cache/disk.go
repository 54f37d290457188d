package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const diskSuffix = ".pcm.zst"

// Disk stores values as zstd-compressed files, one per key. Recency is the
// file modification time, refreshed on every hit.
type Disk struct {
	dir      string
	capacity int64

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	stats   Stats
}

// NewDisk opens a cache directory holding at most capacity compressed bytes.
func NewDisk(dir string, capacity int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Disk{dir: dir, capacity: capacity, encoder: enc, decoder: dec}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+diskSuffix)
}

// Get reads and decompresses the value for key.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.path(key)
	raw, err := os.ReadFile(p)
	if err != nil {
		d.stats.Misses++
		return nil, false
	}
	value, err := d.decoder.DecodeAll(raw, nil)
	if err != nil {
		log.Warn("Dropping corrupted cache file", "path", p, "error", err)
		_ = os.Remove(p)
		d.stats.Misses++
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(p, now, now)
	d.stats.Hits++
	return value, true
}

// Put compresses value to disk and prunes the oldest files beyond capacity.
func (d *Disk) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	compressed := d.encoder.EncodeAll(value, nil)
	if int64(len(compressed)) > d.capacity {
		return ErrItemTooLarge
	}

	p := d.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return d.prune()
}

type diskFile struct {
	path    string
	size    int64
	modTime time.Time
}

// prune deletes least recently used files until the directory fits.
func (d *Disk) prune() error {
	files, total, err := d.scan()
	if err != nil {
		return err
	}
	if total <= d.capacity {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= d.capacity {
			break
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to evict cache file: %w", err)
		}
		total -= f.size
		d.stats.Evictions++
	}
	return nil
}

func (d *Disk) scan() ([]diskFile, int64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var files []diskFile
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, diskFile{
			path:    filepath.Join(d.dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return files, total, nil
}

// Stats returns the cache counters with the current on-disk size.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Capacity = d.capacity
	if files, total, err := d.scan(); err == nil {
		s.Size = total
		s.Items = len(files)
	}
	return s
}

// Clear deletes every cached file.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	files, _, err := d.scan()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close releases the compressor.
func (d *Disk) Close() error {
	d.decoder.Close()
	return d.encoder.Close()
}
