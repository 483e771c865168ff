package tuanlite

import (
	"strconv"
	"sync"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/index"
)

// shard is one lock domain of the key space: the key index and the expire index
// of every key hashed to it.
type shard struct {
	mu      *sync.RWMutex
	index   index.Indexer
	expires *index.ExpireIndex
}

func newShard(indexType index.IndexType) *shard {
	return &shard{
		mu:      new(sync.RWMutex),
		index:   index.NewIndexer(indexType),
		expires: index.NewExpireIndex(),
	}
}

// lookup returns the live entity for key. expired is set when the key is past its
// deadline and still physically present. Needs at least the read lock.
func (s *shard) lookup(key []byte, now int64) (entity *data.Entity, expired bool) {
	if s.expires.Expired(key, now) {
		return nil, s.index.Get(key) != nil
	}
	return s.index.Get(key), false
}

// expireIfNeeded evicts key when it is past its deadline. Needs the write lock.
func (s *shard) expireIfNeeded(key []byte, now int64) bool {
	if !s.expires.Expired(key, now) {
		return false
	}
	s.remove(key)
	recordExpired(1)
	return true
}

func (s *shard) put(key []byte, entity *data.Entity) {
	k := make([]byte, len(key))
	copy(k, key)
	s.index.Put(k, entity)
}

func (s *shard) remove(key []byte) bool {
	s.expires.Remove(key)
	_, ok := s.index.Delete(key)
	return ok
}

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

func formatInt(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}
