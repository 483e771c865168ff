package index

import (
	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/google/btree"
)

// BTree is a key index backed by the google btree library.
// api: https://pkg.go.dev/github.com/google/btree
type BTree struct {
	tree *btree.BTree
}

// NewBTree is a function that creates a new BTree instance.
func NewBTree() *BTree {
	return &BTree{
		tree: btree.New(32),
	}
}

func (bt *BTree) Put(key []byte, entity *data.Entity) *data.Entity {
	it := &Item{key: key, entity: entity}
	oldItem := bt.tree.ReplaceOrInsert(it)
	if oldItem == nil {
		return nil
	}
	return oldItem.(*Item).entity
}

func (bt *BTree) Get(key []byte) *data.Entity {
	it := &Item{key: key}
	btreeItem := bt.tree.Get(it)
	if btreeItem == nil {
		return nil
	}
	return btreeItem.(*Item).entity
}

func (bt *BTree) Delete(key []byte) (*data.Entity, bool) {
	it := &Item{key: key}
	oldItem := bt.tree.Delete(it)
	if oldItem == nil {
		return nil, false
	}
	return oldItem.(*Item).entity, true
}

func (bt *BTree) Ascend(fn func(key []byte, entity *data.Entity) bool) {
	bt.tree.Ascend(func(it btree.Item) bool {
		item := it.(*Item)
		return fn(item.key, item.entity)
	})
}

func (bt *BTree) Size() int {
	return bt.tree.Len()
}

func (bt *BTree) Close() error {
	bt.tree.Clear(false)
	return nil
}
