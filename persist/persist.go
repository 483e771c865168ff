// Package persist writes point-in-time snapshots of the key space to disk and loads them back.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/metrics"
	"github.com/Tuanzi-bug/tuanlite/utils"
	"github.com/gofrs/flock"
	"github.com/hdt3213/godis/lib/logger"
)

const (
	FormatJSON = "json"
	FormatBolt = "bolt"

	tempSuffix = ".tmp"
	lockSuffix = ".lock"
)

var (
	ErrSnapshotInUse        = errors.New("the snapshot file is used by another process")
	ErrNoEnoughSpaceForSave = errors.New("no enough disk space for snapshot")
	ErrCorruptedSnapshot    = errors.New("the snapshot file is corrupted")
	ErrUnsupportedFormat    = errors.New("unsupported snapshot format")
)

// Store is the key space surface snapshots go through.
type Store interface {
	Snapshot() []data.Record
	Restore(records []data.Record) int
	Now() time.Time
}

type Options struct {
	// Format is FormatJSON or FormatBolt
	Format string
	// MMapAtStartup reads json snapshots through a memory mapping
	MMapAtStartup bool
}

var DefaultOptions = Options{
	Format:        FormatJSON,
	MMapAtStartup: false,
}

// Manager owns one snapshot path. It holds a file lock next to it for its whole life so
// two servers never write the same snapshot.
type Manager struct {
	path     string
	options  Options
	codec    codec
	fileLock *flock.Flock
	mu       sync.Mutex
}

// Open locks path for this process.
func Open(path string, options Options) (*Manager, error) {
	c, err := newCodec(options)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, err
		}
	}
	fileLock := flock.New(path + lockSuffix)
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !hold {
		return nil, ErrSnapshotInUse
	}
	return &Manager{
		path:     path,
		options:  options,
		codec:    c,
		fileLock: fileLock,
	}, nil
}

func (m *Manager) Path() string {
	return m.path
}

// Save copies store and replaces the snapshot file atomically: the copy is written to a
// temporary file, synced, then renamed over the old snapshot.
func (m *Manager) Save(store Store) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	records := store.Snapshot()
	encoded := make([][]byte, len(records))
	var size uint64
	for i := range records {
		buf, err := json.Marshal(records[i])
		if err != nil {
			return 0, fmt.Errorf("encode key %q: %w", records[i].Key, err)
		}
		encoded[i] = buf
		size += uint64(len(buf)) + 1
	}

	available, err := utils.AvailableDiskSize(filepath.Dir(m.path))
	if err != nil {
		return 0, err
	}
	if size >= available {
		return 0, ErrNoEnoughSpaceForSave
	}

	tmpPath := m.path + tempSuffix
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if err := m.codec.writeFile(tmpPath, records, encoded); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	syncDir(filepath.Dir(m.path))

	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	logger.Info(fmt.Sprintf("snapshot saved: %d keys to %s in %s", len(records), m.path, time.Since(start)))
	return len(records), nil
}

// Load restores the snapshot into store. A missing file is an empty snapshot, any other
// stat failure is an error. Entries whose deadline already passed and empty lists are dropped.
func (m *Manager) Load(store Store) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(m.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no snapshot at " + m.path + ", starting empty")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load snapshot %s: %w", m.path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("load snapshot %s: is a directory", m.path)
	}
	records, err := m.codec.readFile(m.path)
	if err != nil {
		return 0, fmt.Errorf("load snapshot %s: %w", m.path, err)
	}

	now := store.Now()
	live := records[:0]
	for _, record := range records {
		if record.Value == nil {
			return 0, fmt.Errorf("load snapshot %s: %w", m.path, ErrCorruptedSnapshot)
		}
		if record.Expired(now) || record.Value.Empty() {
			continue
		}
		live = append(live, record)
	}
	restored := store.Restore(live)
	logger.Info(fmt.Sprintf("snapshot loaded: %d keys from %s, %d expired or empty dropped", restored, m.path, len(records)-len(live)))
	return restored, nil
}

// Close releases the snapshot lock.
func (m *Manager) Close() error {
	return m.fileLock.Unlock()
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
