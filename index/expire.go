package index

import (
	"bytes"
	"github.com/google/btree"
)

// ExpireIndex tracks absolute deadlines (unix nanoseconds) per key.
// It keeps a key -> deadline map for point lookups and a btree ordered by
// (deadline, key) so the earliest deadlines can be popped without a full scan.
// Not safe for concurrent use.
type ExpireIndex struct {
	deadlines map[string]int64
	order     *btree.BTree
}

type deadlineItem struct {
	at  int64
	key []byte
}

func (a *deadlineItem) Less(than btree.Item) bool {
	b := than.(*deadlineItem)
	if a.at != b.at {
		return a.at < b.at
	}
	return bytes.Compare(a.key, b.key) == -1
}

func NewExpireIndex() *ExpireIndex {
	return &ExpireIndex{
		deadlines: make(map[string]int64),
		order:     btree.New(32),
	}
}

// Set installs or replaces the deadline of key.
func (ei *ExpireIndex) Set(key []byte, at int64) {
	ei.Remove(key)
	k := string(key)
	ei.deadlines[k] = at
	ei.order.ReplaceOrInsert(&deadlineItem{at: at, key: []byte(k)})
}

// Get returns the deadline of key and whether it has one.
func (ei *ExpireIndex) Get(key []byte) (int64, bool) {
	at, ok := ei.deadlines[string(key)]
	return at, ok
}

// Remove clears the deadline of key, reporting whether one existed.
func (ei *ExpireIndex) Remove(key []byte) bool {
	at, ok := ei.deadlines[string(key)]
	if !ok {
		return false
	}
	delete(ei.deadlines, string(key))
	ei.order.Delete(&deadlineItem{at: at, key: key})
	return true
}

// Expired reports whether key has a deadline at or before now.
func (ei *ExpireIndex) Expired(key []byte, now int64) bool {
	at, ok := ei.deadlines[string(key)]
	return ok && at <= now
}

// Due returns up to limit keys whose deadline is at or before now, earliest first.
// limit <= 0 means no limit.
func (ei *ExpireIndex) Due(now int64, limit int) [][]byte {
	var keys [][]byte
	ei.order.Ascend(func(it btree.Item) bool {
		item := it.(*deadlineItem)
		if item.at > now {
			return false
		}
		keys = append(keys, item.key)
		return limit <= 0 || len(keys) < limit
	})
	return keys
}

func (ei *ExpireIndex) Size() int {
	return len(ei.deadlines)
}
