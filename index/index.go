package index

import (
	"bytes"
	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/google/btree"
)

// Indexer is an interface that represents the key index of a shard.
// Implementations are not safe for concurrent use, the owning shard serializes access.
type Indexer interface {
	Put(key []byte, entity *data.Entity) *data.Entity     // Put stores the entity and returns the one it replaced.
	Get(key []byte) *data.Entity                          // Get returns the entity bound to key, nil if absent.
	Delete(key []byte) (*data.Entity, bool)               // Delete removes the key and returns the old entity.
	Ascend(fn func(key []byte, entity *data.Entity) bool) // Ascend visits keys in byte order until fn returns false.
	Size() int                                            // Size returns the number of keys.
	Close() error                                         // Close releases the index.
}

type Item struct {
	key    []byte
	entity *data.Entity
}

type IndexType = int8

const (
	Btree IndexType = iota + 1
	Art
)

// NewIndexer 根据配置返回对应的索引对象
func NewIndexer(indexType IndexType) Indexer {
	switch indexType {
	case Btree:
		return NewBTree()
	case Art:
		return NewART()
	default:
		panic("unsupported index type")
	}
}

// ParseIndexType maps a config name to an IndexType, 0 if unknown.
func ParseIndexType(name string) IndexType {
	switch name {
	case "btree", "":
		return Btree
	case "art":
		return Art
	default:
		return 0
	}
}

func (ai *Item) Less(bi btree.Item) bool {
	return bytes.Compare(ai.key, bi.(*Item).key) == -1
}
