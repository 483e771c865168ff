package database

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/Tuanzi-bug/tuanlite"
	"github.com/Tuanzi-bug/tuanlite/metrics"
	"github.com/Tuanzi-bug/tuanlite/persist"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

// DB dispatches command lines to the key space. It holds no per-connection state, every
// connection goroutine calls Exec on the same instance.
type DB struct {
	data *tuanlite.DB
	// persister is nil when snapshots are disabled
	persister *persist.Manager
}

// ExecFunc is interface for command executor
// args don't include cmd line
type ExecFunc func(db *DB, args [][]byte) redis.Reply

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

// MakeDB creates a dispatcher over data. persister may be nil.
func MakeDB(data *tuanlite.DB, persister *persist.Manager) *DB {
	return &DB{
		data:      data,
		persister: persister,
	}
}

// Exec validates and executes one command line. Errors become error replies for the calling
// connection only.
func (db *DB) Exec(c redis.Connection, cmdLine [][]byte) (result redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			result = &protocol.UnknownErrReply{}
		}
	}()
	if len(cmdLine) == 0 {
		return protocol.MakeErrReply("ERR empty command")
	}
	cmdName := strings.ToLower(string(cmdLine[0]))
	cmd, ok := cmdTable[cmdName]
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown", "err").Inc()
		return protocol.MakeUnknownCommandErrReply(cmdName)
	}
	if !validateArity(cmd.arity, cmdLine) {
		metrics.CommandsTotal.WithLabelValues(cmdName, "err").Inc()
		return protocol.MakeArgNumErrReply(cmdName)
	}
	result = cmd.executor(db, cmdLine[1:])
	status := "ok"
	if protocol.IsErrorReply(result) {
		status = "err"
	}
	metrics.CommandsTotal.WithLabelValues(cmdName, status).Inc()
	return result
}

// AfterClientClose is called when a connection goes away. Nothing is kept per connection.
func (db *DB) AfterClientClose(c redis.Connection) {
}

// Close stops the key space background work
func (db *DB) Close() error {
	return db.data.Close()
}

// validateArity checks the number of arguments, cmd name included.
// arity < 0 means len(args) >= -arity.
func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

// errReply maps key space errors to typed replies
func errReply(err error) redis.Reply {
	switch err {
	case tuanlite.ErrWrongType:
		return protocol.MakeWrongTypeErrReply()
	case tuanlite.ErrNotInteger:
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	case tuanlite.ErrOverflow:
		return protocol.MakeErrReply("ERR increment or decrement would overflow")
	case tuanlite.ErrDBIsClosed:
		return protocol.MakeErrReply("ERR server is shutting down")
	default:
		return protocol.MakeErrReply("ERR " + err.Error())
	}
}
