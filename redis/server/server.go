package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/Tuanzi-bug/tuanlite/metrics"
	"github.com/Tuanzi-bug/tuanlite/redis/connection"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/database"
	"github.com/Tuanzi-bug/tuanlite/redis/parser"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/atomic"
)

// Handler implements tcp.Handler and serves as a redis server
type Handler struct {
	activeConn sync.Map // *client -> placeholder
	db         database.DB
	closing    atomic.Boolean // refusing new client and new request
}

var (
	unknownErrReplyBytes = []byte("-ERR unknown\r\n")
)

// MakeHandler creates a Handler instance serving db
func MakeHandler(db database.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.db.AfterClientClose(client)
	h.activeConn.Delete(client)
	metrics.ConnectedClients.Dec()
}

// Handle receives and executes redis commands of one connection. Commands are executed in
// arrival order, the reply is written after the key space released its locks.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	if h.closing.Get() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}
	client := connection.NewConn(conn)
	h.activeConn.Store(client, struct{}{}) // remember alive connection
	metrics.ConnectedClients.Inc()
	logger.Info("connection accepted: " + client.Name())

	ch := parser.ParseStream(conn)
	defer func() {
		// unblock the parser goroutine if it still holds a payload
		go func() {
			for range ch {
			}
		}()
	}()
	for payload := range ch {
		if payload.Err != nil {
			// 读取到EOF或者连接关闭
			if payload.Err == io.EOF ||
				errors.Is(payload.Err, io.ErrUnexpectedEOF) ||
				errors.Is(payload.Err, net.ErrClosed) ||
				strings.Contains(payload.Err.Error(), "use of closed network connection") {
				h.closeClient(client)
				logger.Info("connection closed: " + client.Name())
				return
			}
			if parser.IsProtocolError(payload.Err) {
				// 协议解析错误: 回复错误后关闭连接, 不尝试重新同步
				metrics.ProtocolErrors.Inc()
				var pe *parser.ProtocolError
				errors.As(payload.Err, &pe)
				_, _ = client.Write(protocol.MakeProtocolErrReply(pe.Msg).ToBytes())
				h.closeClient(client)
				logger.Warn("connection closed on protocol error: " + client.Name() + ": " + pe.Msg)
				return
			}
			h.closeClient(client)
			logger.Warn("connection closed: " + client.Name() + ": " + payload.Err.Error())
			return
		}
		if h.closing.Get() {
			h.closeClient(client)
			return
		}
		if payload.Data == nil {
			logger.Error("empty payload")
			continue
		}
		r, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			metrics.ProtocolErrors.Inc()
			_, _ = client.Write(protocol.MakeProtocolErrReply("expected array of bulk strings").ToBytes())
			h.closeClient(client)
			logger.Warn("require multi bulk protocol: " + client.Name())
			return
		}
		if len(r.Args) == 0 {
			continue
		}
		result := h.db.Exec(client, r.Args)
		var err error
		if result != nil {
			_, err = client.Write(result.ToBytes())
		} else {
			_, err = client.Write(unknownErrReplyBytes)
		}
		if err != nil {
			h.closeClient(client)
			logger.Info("connection closed on write error: " + client.Name())
			return
		}
	}
}

// Close stops handler
func (h *Handler) Close() error {
	logger.Info("handler shutting down...")
	h.closing.Set(true)
	h.activeConn.Range(func(key, value interface{}) bool {
		client := key.(*connection.Connection)
		_ = client.Close()
		return true
	})
	return h.db.Close()
}
