package database

import (
	"fmt"

	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

// execSave writes a snapshot of the whole key space and replies once it is on disk
func execSave(db *DB, args [][]byte) redis.Reply {
	if db.persister == nil {
		return protocol.MakeErrReply("ERR snapshot is disabled")
	}
	if _, err := db.persister.Save(db.data); err != nil {
		logger.Error(fmt.Sprintf("save snapshot failed: %v", err))
		return protocol.MakeErrReply("ERR " + err.Error())
	}
	return protocol.MakeOkReply()
}

// execDBSize returns the number of keys held
func execDBSize(db *DB, args [][]byte) redis.Reply {
	return protocol.MakeIntReply(int64(db.data.Len()))
}

func init() {
	registerCommand("Save", execSave, 1)
	registerCommand("DBSize", execDBSize, 1)
}
