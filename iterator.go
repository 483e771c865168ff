package tuanlite

import (
	"bytes"
	"sort"

	"github.com/Tuanzi-bug/tuanlite/data"
)

// Iterator walks the keys that were live when it was created, in byte order.
// Shards are visited one at a time, so the key set is not a point-in-time view of the
// whole key space. Values are read on demand and may have changed or gone since.
type Iterator struct {
	keys    [][]byte
	pos     int
	db      *DB
	options IteratorOptions
}

func (db *DB) NewIterator(opts IteratorOptions) *Iterator {
	var keys [][]byte
	for _, s := range db.shards {
		s.mu.RLock()
		now := db.now().UnixNano()
		s.index.Ascend(func(key []byte, _ *data.Entity) bool {
			if !bytes.HasPrefix(key, opts.Prefix) || s.expires.Expired(key, now) {
				return true
			}
			keys = append(keys, key)
			return true
		})
		s.mu.RUnlock()
	}
	sort.Slice(keys, func(i, j int) bool {
		if opts.Reverse {
			return bytes.Compare(keys[i], keys[j]) > 0
		}
		return bytes.Compare(keys[i], keys[j]) < 0
	})
	return &Iterator{
		keys:    keys,
		db:      db,
		options: opts,
	}
}

func (it *Iterator) Rewind() {
	it.pos = 0
}

// Seek moves to the first key >= key, or <= key for a reverse iterator
func (it *Iterator) Seek(key []byte) {
	it.pos = sort.Search(len(it.keys), func(i int) bool {
		if it.options.Reverse {
			return bytes.Compare(it.keys[i], key) <= 0
		}
		return bytes.Compare(it.keys[i], key) >= 0
	})
}

func (it *Iterator) Next() {
	it.pos++
}

func (it *Iterator) Valid() bool {
	return it.pos < len(it.keys)
}

func (it *Iterator) Key() []byte {
	return it.keys[it.pos]
}

// Value reads the current value of Key, false if it is gone
func (it *Iterator) Value() (*data.Entity, bool) {
	return it.db.Get(it.Key())
}

func (it *Iterator) Close() {
	it.keys = nil
}
