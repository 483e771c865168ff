package database

import (
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
)

// Ping the server
func Ping(db *DB, args [][]byte) redis.Reply {
	return protocol.MakePongReply()
}

// Echo returns its argument
func Echo(db *DB, args [][]byte) redis.Reply {
	return protocol.MakeBulkReply(args[0])
}

func init() {
	registerCommand("Ping", Ping, 1)
	registerCommand("Echo", Echo, 2)
}
