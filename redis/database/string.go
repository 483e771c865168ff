package database

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
)

// deadlines are stored as unix nanoseconds, anything later cannot be represented
var maxDeadline = time.Unix(0, math.MaxInt64)

var (
	notIntegerErr  = "ERR value is not an integer or out of range"
	invalidExpire  = "ERR invalid expire time in 'set' command"
	emptyBulkBytes = []byte{}
)

// execGet returns string value bound to the given key
func execGet(db *DB, args [][]byte) redis.Reply {
	entity, ok := db.data.Get(args[0])
	if !ok {
		return protocol.MakeNullBulkReply()
	}
	switch entity.Kind {
	case data.KindString:
		if entity.Str == nil {
			return protocol.MakeBulkReply(emptyBulkBytes)
		}
		return protocol.MakeBulkReply(entity.Str)
	case data.KindList:
		return protocol.MakeWrongTypeErrReply()
	default:
		return &protocol.UnknownErrReply{}
	}
}

// execSet sets string value and time to live to the given key.
// SET key value [EX seconds|PX milliseconds|EXAT unix-seconds|PXAT unix-milliseconds]
// Every option is validated before the key space is touched.
func execSet(db *DB, args [][]byte) redis.Reply {
	key := args[0]
	value := args[1]

	now := db.data.Now()
	var expireAt time.Time
	hasExpire := false
	for i := 2; i < len(args); i += 2 {
		opt := strings.ToUpper(string(args[i]))
		switch opt {
		case "EX", "PX", "EXAT", "PXAT":
		default:
			return protocol.MakeSyntaxErrReply()
		}
		if hasExpire || i+1 >= len(args) {
			return protocol.MakeSyntaxErrReply()
		}
		n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
		if err != nil {
			return protocol.MakeErrReply(notIntegerErr)
		}
		at, ok := expireTime(opt, n, now)
		if !ok {
			return protocol.MakeErrReply(invalidExpire)
		}
		expireAt = at
		hasExpire = true
	}

	if err := db.data.Set(key, data.NewString(value), expireAt); err != nil {
		return errReply(err)
	}
	return protocol.MakeOkReply()
}

// expireTime converts a SET expire option to an absolute deadline.
func expireTime(opt string, n int64, now time.Time) (time.Time, bool) {
	var at time.Time
	switch opt {
	case "EX":
		if n > math.MaxInt64/int64(time.Second) || n < math.MinInt64/int64(time.Second) {
			return at, false
		}
		at = now.Add(time.Duration(n) * time.Second)
	case "PX":
		if n > math.MaxInt64/int64(time.Millisecond) || n < math.MinInt64/int64(time.Millisecond) {
			return at, false
		}
		at = now.Add(time.Duration(n) * time.Millisecond)
	case "EXAT":
		if n > math.MaxInt64/int64(time.Second) {
			return at, false
		}
		at = time.Unix(n, 0)
	case "PXAT":
		if n > math.MaxInt64/int64(time.Millisecond) {
			return at, false
		}
		at = time.UnixMilli(n)
	}
	if at.After(maxDeadline) {
		return at, false
	}
	return at, true
}

// execIncr increments the integer value of a key by one
func execIncr(db *DB, args [][]byte) redis.Reply {
	return mutateInteger(db, args[0], 1)
}

// execDecr decrements the integer value of a key by one
func execDecr(db *DB, args [][]byte) redis.Reply {
	return mutateInteger(db, args[0], -1)
}

func mutateInteger(db *DB, key []byte, delta int64) redis.Reply {
	n, err := db.data.MutateInteger(key, delta)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeIntReply(n)
}

func init() {
	registerCommand("Set", execSet, -3)
	registerCommand("Get", execGet, 2)
	registerCommand("Incr", execIncr, 2)
	registerCommand("Decr", execDecr, 2)
}
