package database

import (
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
)

// CmdLine is alias for [][]byte, represents a command line  CmdLine是[][]byte的别名，表示一行命令
type CmdLine = [][]byte

// DB is the interface for redis style storage engine  DB是redis风格存储引擎的接口
type DB interface {
	Exec(client redis.Connection, cmdLine [][]byte) redis.Reply
	AfterClientClose(c redis.Connection)
	Close() error
}
