package database

import (
	"time"

	"github.com/Tuanzi-bug/tuanlite"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/gobwas/glob"
)

// execDel removes keys and returns how many existed
func execDel(db *DB, args [][]byte) redis.Reply {
	deleted := db.data.Delete(args...)
	return protocol.MakeIntReply(int64(deleted))
}

// execExists checks if the given key exists
func execExists(db *DB, args [][]byte) redis.Reply {
	if db.data.Exists(args[0]) {
		return protocol.MakeIntReply(1)
	}
	return protocol.MakeIntReply(0)
}

// execTTL returns a key's time to live in seconds
func execTTL(db *DB, args [][]byte) redis.Reply {
	return ttlReply(db, args[0], time.Second)
}

// execPTTL returns a key's time to live in milliseconds
func execPTTL(db *DB, args [][]byte) redis.Reply {
	return ttlReply(db, args[0], time.Millisecond)
}

// ttlReply answers -2 for absent keys and -1 for keys without a deadline
func ttlReply(db *DB, key []byte, unit time.Duration) redis.Reply {
	ttl, hasTTL, exists := db.data.TTL(key)
	if !exists {
		return protocol.MakeIntReply(-2)
	}
	if !hasTTL {
		return protocol.MakeIntReply(-1)
	}
	return protocol.MakeIntReply(int64((ttl + unit/2) / unit))
}

// execKeys returns all live keys matching the given glob pattern, in byte order
func execKeys(db *DB, args [][]byte) redis.Reply {
	pattern, err := glob.Compile(string(args[0]))
	if err != nil {
		return protocol.MakeErrReply("ERR invalid pattern")
	}
	it := db.data.NewIterator(tuanlite.DefaultIteratorOptions)
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		if pattern.Match(string(it.Key())) {
			keys = append(keys, it.Key())
		}
	}
	if len(keys) == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return protocol.MakeMultiBulkReply(keys)
}

func init() {
	registerCommand("Del", execDel, -2)
	registerCommand("Exists", execExists, 2)
	registerCommand("TTL", execTTL, 2)
	registerCommand("PTTL", execPTTL, 2)
	registerCommand("Keys", execKeys, 2)
}
