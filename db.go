package tuanlite

import (
	"bytes"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/metrics"
)

// Side selects the end of a list a push goes to.
type Side int

const (
	Left Side = iota
	Right
)

// DB is the in-memory key space. Keys are partitioned over shards, each guarded by its own lock,
// so commands on keys of different shards never wait for each other.
type DB struct {
	options Options
	shards  []*shard
	now     func() time.Time

	closeOnce sync.Once
	closeCh   chan struct{}
	sweepWg   sync.WaitGroup
}

// Open creates an empty key space
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}
	db := &DB{
		options: options,
		shards:  make([]*shard, options.Shards),
		now:     time.Now,
		closeCh: make(chan struct{}),
	}
	for i := range db.shards {
		db.shards[i] = newShard(options.IndexType)
	}
	return db, nil
}

// Now returns the clock the key space judges deadlines against.
func (db *DB) Now() time.Time {
	return db.now()
}

func (db *DB) closed() bool {
	select {
	case <-db.closeCh:
		return true
	default:
		return false
	}
}

func (db *DB) shardIndex(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(len(db.shards)))
}

func (db *DB) shardOf(key []byte) *shard {
	return db.shards[db.shardIndex(key)]
}

// Get returns a copy of the live entity bound to key.
func (db *DB) Get(key []byte) (*data.Entity, bool) {
	s := db.shardOf(key)
	now := db.now().UnixNano()

	s.mu.RLock()
	entity, expired := s.lookup(key, now)
	if entity != nil {
		entity = entity.Clone()
	}
	s.mu.RUnlock()

	if expired {
		s.mu.Lock()
		s.expireIfNeeded(key, db.now().UnixNano())
		s.mu.Unlock()
	}
	return entity, entity != nil
}

// Exists reports whether key holds a live value.
func (db *DB) Exists(key []byte) bool {
	_, ok := db.Get(key)
	return ok
}

// Set binds entity to key. A zero expireAt clears any previous deadline, a deadline that is
// not in the future leaves the key absent.
func (db *DB) Set(key []byte, entity *data.Entity, expireAt time.Time) error {
	if db.closed() {
		return ErrDBIsClosed
	}
	s := db.shardOf(key)
	now := db.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !expireAt.IsZero() && !expireAt.After(now) {
		s.remove(key)
		return nil
	}
	s.put(key, entity)
	if expireAt.IsZero() {
		s.expires.Remove(key)
	} else {
		s.expires.Set(key, expireAt.UnixNano())
	}
	return nil
}

// Delete removes keys and returns how many held a live value.
func (db *DB) Delete(keys ...[]byte) int {
	var removed int
	for _, key := range keys {
		s := db.shardOf(key)
		s.mu.Lock()
		if !s.expireIfNeeded(key, db.now().UnixNano()) && s.remove(key) {
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// MutateInteger adds delta to the integer stored at key, treating an absent key as 0.
// The key keeps its deadline.
func (db *DB) MutateInteger(key []byte, delta int64) (int64, error) {
	if db.closed() {
		return 0, ErrDBIsClosed
	}
	s := db.shardOf(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfNeeded(key, db.now().UnixNano())

	var current int64
	if entity := s.index.Get(key); entity != nil {
		if entity.Kind != data.KindString {
			return 0, ErrWrongType
		}
		n, err := parseInt(entity.Str)
		if err != nil {
			return 0, err
		}
		current = n
	}
	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	current += delta
	s.put(key, data.NewString(formatInt(current)))
	return current, nil
}

// PushList inserts values at one end of the list stored at key, creating it when absent.
// LPUSH semantics apply on the left: each value becomes the new head in argument order.
func (db *DB) PushList(key []byte, side Side, values [][]byte) (int, error) {
	if db.closed() {
		return 0, ErrDBIsClosed
	}
	s := db.shardOf(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfNeeded(key, db.now().UnixNano())

	entity := s.index.Get(key)
	if entity == nil {
		entity = data.NewList(make([][]byte, 0, len(values)))
		s.put(key, entity)
	} else if entity.Kind != data.KindList {
		return 0, ErrWrongType
	}

	switch side {
	case Left:
		list := make([][]byte, 0, len(entity.List)+len(values))
		for i := len(values) - 1; i >= 0; i-- {
			list = append(list, values[i])
		}
		entity.List = append(list, entity.List...)
	case Right:
		entity.List = append(entity.List, values...)
	}
	return len(entity.List), nil
}

// Range returns list elements between start and stop inclusive; negative offsets count from the tail.
func (db *DB) Range(key []byte, start, stop int64) ([][]byte, error) {
	entity, ok := db.Get(key)
	if !ok {
		return nil, nil
	}
	if entity.Kind != data.KindList {
		return nil, ErrWrongType
	}
	size := int64(len(entity.List))
	if start < 0 {
		start = size + start
	}
	if stop < 0 {
		stop = size + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop {
		return [][]byte{}, nil
	}
	return entity.List[start : stop+1], nil
}

// ListLen returns the length of the list at key, 0 when absent.
func (db *DB) ListLen(key []byte) (int, error) {
	entity, ok := db.Get(key)
	if !ok {
		return 0, nil
	}
	if entity.Kind != data.KindList {
		return 0, ErrWrongType
	}
	return len(entity.List), nil
}

// TTL returns the remaining time to live of key. hasTTL is false for persistent keys and
// exists is false for absent ones.
func (db *DB) TTL(key []byte) (ttl time.Duration, hasTTL bool, exists bool) {
	s := db.shardOf(key)
	now := db.now().UnixNano()

	s.mu.RLock()
	entity, expired := s.lookup(key, now)
	at, hasTTL := s.expires.Get(key)
	s.mu.RUnlock()

	if expired {
		s.mu.Lock()
		s.expireIfNeeded(key, db.now().UnixNano())
		s.mu.Unlock()
	}
	if entity == nil {
		return 0, false, false
	}
	if !hasTTL {
		return 0, false, true
	}
	return time.Duration(at - now), true, true
}

// Len returns the number of keys held, including expired keys not yet evicted.
func (db *DB) Len() int {
	var n int
	for _, s := range db.shards {
		s.mu.RLock()
		n += s.index.Size()
		s.mu.RUnlock()
	}
	return n
}

// Snapshot returns a point-in-time copy of every live entry ordered by key. All shards are
// read-locked together for the copy only.
func (db *DB) Snapshot() []data.Record {
	for _, s := range db.shards {
		s.mu.RLock()
	}
	now := db.now().UnixNano()
	var records []data.Record
	for _, s := range db.shards {
		s.index.Ascend(func(key []byte, entity *data.Entity) bool {
			if s.expires.Expired(key, now) {
				return true
			}
			record := data.Record{Key: key, Value: entity.Clone()}
			if at, ok := s.expires.Get(key); ok {
				record.ExpiresAt = time.Unix(0, at)
			}
			records = append(records, record)
			return true
		})
	}
	for _, s := range db.shards {
		s.mu.RUnlock()
	}

	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Key, records[j].Key) < 0
	})
	return records
}

// Restore installs records into the key space, skipping expired ones and empty lists, and
// returns how many were installed.
func (db *DB) Restore(records []data.Record) int {
	now := db.now()
	var restored int
	for i := range records {
		record := &records[i]
		if record.Value == nil || record.Value.Empty() || record.Expired(now) {
			continue
		}
		if err := db.Set(record.Key, record.Value.Clone(), record.ExpiresAt); err == nil {
			restored++
		}
	}
	return restored
}

// Close stops the active expire pass and releases the indexes.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		close(db.closeCh)
	})
	db.sweepWg.Wait()
	for _, s := range db.shards {
		s.mu.Lock()
		_ = s.index.Close()
		s.mu.Unlock()
	}
	return nil
}

func recordExpired(n int) {
	if n > 0 {
		metrics.ExpiredKeys.Add(float64(n))
	}
}
