package database

import (
	"strconv"

	"github.com/Tuanzi-bug/tuanlite"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
)

// execLPush inserts elements at head of list
func execLPush(db *DB, args [][]byte) redis.Reply {
	return push(db, args, tuanlite.Left)
}

// execRPush inserts elements at last of list
func execRPush(db *DB, args [][]byte) redis.Reply {
	return push(db, args, tuanlite.Right)
}

func push(db *DB, args [][]byte, side tuanlite.Side) redis.Reply {
	size, err := db.data.PushList(args[0], side, args[1:])
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeIntReply(int64(size))
}

// execLLen gets length of list
func execLLen(db *DB, args [][]byte) redis.Reply {
	size, err := db.data.ListLen(args[0])
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeIntReply(int64(size))
}

// execLRange gets elements of list in given range
func execLRange(db *DB, args [][]byte) redis.Reply {
	start, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply(notIntegerErr)
	}
	stop, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply(notIntegerErr)
	}
	values, err := db.data.Range(args[0], start, stop)
	if err != nil {
		return errReply(err)
	}
	if len(values) == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return protocol.MakeMultiBulkReply(values)
}

func init() {
	registerCommand("LPush", execLPush, -3)
	registerCommand("RPush", execRPush, -3)
	registerCommand("LLen", execLLen, 2)
	registerCommand("LRange", execLRange, 4)
}
