package index

import (
	"testing"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/stretchr/testify/assert"
)

func eachIndexer(t *testing.T, fn func(t *testing.T, idx Indexer)) {
	for name, typ := range map[string]IndexType{"btree": Btree, "art": Art} {
		t.Run(name, func(t *testing.T) {
			idx := NewIndexer(typ)
			defer idx.Close()
			fn(t, idx)
		})
	}
}

func TestIndexer_Put(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		old := idx.Put([]byte("hello"), data.NewString([]byte("1")))
		assert.Nil(t, old)

		old = idx.Put([]byte("hello"), data.NewString([]byte("2")))
		assert.NotNil(t, old)
		assert.Equal(t, []byte("1"), old.Str)
		assert.Equal(t, 1, idx.Size())
	})
}

func TestIndexer_Get(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		assert.Nil(t, idx.Get([]byte("missing")))

		idx.Put([]byte("hello world"), data.NewList([][]byte{[]byte("a")}))
		e := idx.Get([]byte("hello world"))
		assert.NotNil(t, e)
		assert.Equal(t, data.KindList, e.Kind)
	})
}

func TestIndexer_Delete(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		_, ok := idx.Delete([]byte("missing"))
		assert.False(t, ok)

		idx.Put([]byte("a"), data.NewString([]byte("1")))
		old, ok := idx.Delete([]byte("a"))
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), old.Str)
		assert.Equal(t, 0, idx.Size())
	})
}

func TestIndexer_EmptyKey(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		idx.Put([]byte("a"), data.NewString([]byte("1")))
		assert.Nil(t, idx.Put([]byte{}, data.NewString([]byte("0"))))
		e := idx.Get(nil)
		if assert.NotNil(t, e) {
			assert.Equal(t, []byte("0"), e.Str)
		}
		assert.Equal(t, 2, idx.Size())

		old, ok := idx.Delete([]byte(""))
		assert.True(t, ok)
		assert.Equal(t, []byte("0"), old.Str)
		assert.Nil(t, idx.Get(nil))
		assert.NotNil(t, idx.Get([]byte("a")))
	})
}

func TestIndexer_Ascend(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		for _, k := range []string{"c", "a", "b", "ab"} {
			idx.Put([]byte(k), data.NewString([]byte(k)))
		}
		var keys []string
		idx.Ascend(func(key []byte, entity *data.Entity) bool {
			keys = append(keys, string(key))
			return true
		})
		assert.Equal(t, []string{"a", "ab", "b", "c"}, keys)

		keys = keys[:0]
		idx.Ascend(func(key []byte, entity *data.Entity) bool {
			keys = append(keys, string(key))
			return len(keys) < 2
		})
		assert.Equal(t, []string{"a", "ab"}, keys)
	})
}

func TestParseIndexType(t *testing.T) {
	assert.Equal(t, Btree, ParseIndexType(""))
	assert.Equal(t, Btree, ParseIndexType("btree"))
	assert.Equal(t, Art, ParseIndexType("art"))
	assert.Equal(t, IndexType(0), ParseIndexType("bptree"))
}
