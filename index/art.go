package index

import (
	"github.com/Tuanzi-bug/tuanlite/data"
	goart "github.com/plar/go-adaptive-radix-tree"
)

// AdaptiveRadixTree is a key index backed by an adaptive radix tree.
type AdaptiveRadixTree struct {
	tree goart.Tree
}

func NewART() *AdaptiveRadixTree {
	return &AdaptiveRadixTree{
		tree: goart.New(),
	}
}

func (art *AdaptiveRadixTree) Put(key []byte, entity *data.Entity) *data.Entity {
	oldValue, _ := art.tree.Insert(key, entity)
	if oldValue == nil {
		return nil
	}
	return oldValue.(*data.Entity)
}

func (art *AdaptiveRadixTree) Get(key []byte) *data.Entity {
	value, found := art.tree.Search(key)
	if !found {
		return nil
	}
	return value.(*data.Entity)
}

func (art *AdaptiveRadixTree) Delete(key []byte) (*data.Entity, bool) {
	oldValue, deleted := art.tree.Delete(key)
	if oldValue == nil {
		return nil, deleted
	}
	return oldValue.(*data.Entity), deleted
}

func (art *AdaptiveRadixTree) Ascend(fn func(key []byte, entity *data.Entity) bool) {
	art.tree.ForEach(func(node goart.Node) bool {
		return fn(node.Key(), node.Value().(*data.Entity))
	})
}

func (art *AdaptiveRadixTree) Size() int {
	return art.tree.Size()
}

func (art *AdaptiveRadixTree) Close() error {
	return nil
}
