package connection

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hdt3213/godis/lib/sync/wait"
)

// Connection represents a connection with a redis-cli
type Connection struct {
	conn net.Conn
	id   string
	// 等待数据发送完成，用于正常关机
	sendingData wait.Wait
	// lock while server sending response
	mu        sync.Mutex
	closeOnce sync.Once
}

func NewConn(conn net.Conn) *Connection {
	return &Connection{
		conn: conn,
		id:   uuid.NewString(),
	}
}

// Write sends response to client over tcp connection
func (c *Connection) Write(bytes []byte) (int, error) {
	if len(bytes) == 0 {
		return 0, nil
	}
	c.sendingData.Add(1)
	defer c.sendingData.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(bytes)
}

// Close closes the connection once pending writes finished or 10 seconds passed
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		// 超时等待数据发送完成
		c.sendingData.WaitWithTimeout(10 * time.Second)
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote network address
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ID returns the unique id assigned when the connection was accepted
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Name() string {
	if c.conn != nil {
		return c.id + "@" + c.conn.RemoteAddr().String()
	}
	return c.id
}
