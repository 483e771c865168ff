package client

import (
	"errors"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/parser"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/wait"
)

const (
	created = iota
	running
	closed
)

// Client is a pipeline mode redis client
type Client struct {
	conn        net.Conn
	pendingReqs chan *request // wait to send
	waitingReqs chan *request // waiting response
	ticker      *time.Ticker
	stopCh      chan struct{}
	addr        string

	status  int32
	working *sync.WaitGroup // its counter presents unfinished requests(pending and waiting)
}

// request is a message sends to redis server
type request struct {
	args      [][]byte
	reply     redis.Reply
	heartbeat bool
	waiting   *wait.Wait
	err       error
}

const (
	chanSize = 256
	maxWait  = 3 * time.Second
)

var errConnClosed = errors.New("connection closed")

// MakeClient creates a new client
func MakeClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		addr:        addr,
		conn:        conn,
		pendingReqs: make(chan *request, chanSize),
		waitingReqs: make(chan *request, chanSize),
		working:     &sync.WaitGroup{},
		stopCh:      make(chan struct{}),
		status:      created,
	}, nil
}

// Start launches the write, read and heartbeat loops
func (client *Client) Start() {
	client.ticker = time.NewTicker(10 * time.Second)
	go client.handleWrite()
	go client.handleRead()
	go client.heartbeat()
	atomic.StoreInt32(&client.status, running)
}

// Close stops accepting requests, waits for the in-flight ones and closes the connection
func (client *Client) Close() {
	if !atomic.CompareAndSwapInt32(&client.status, running, closed) {
		return
	}
	client.ticker.Stop()
	close(client.stopCh)
	// stop new request
	close(client.pendingReqs)

	// wait stop process
	client.working.Wait()

	// clean
	_ = client.conn.Close()
}

func (client *Client) heartbeat() {
	// send a PING request
	for {
		select {
		case <-client.stopCh:
			return
		case <-client.ticker.C:
			client.doHeartbeat()
		}
	}
}

func (client *Client) handleWrite() {
	for req := range client.pendingReqs {
		client.doRequest(req)
	}
}

func (client *Client) doRequest(req *request) {
	if req == nil || len(req.args) == 0 {
		return
	}
	bytes := protocol.MakeMultiBulkReply(req.args).ToBytes()
	var err error
	// retry 3 times
	for i := 0; i < 3; i++ { // only retry, waiting for handleRead
		_, err = client.conn.Write(bytes)
		if err == nil ||
			(!strings.Contains(err.Error(), "timeout") && // only retry timeout
				!strings.Contains(err.Error(), "deadline exceeded")) {
			break
		}
	}

	if err == nil {
		client.waitingReqs <- req
	} else {
		req.err = err
		req.waiting.Done()
	}
}

func (client *Client) doHeartbeat() {
	request := &request{
		args:      [][]byte{[]byte("PING")},
		heartbeat: true,
		waiting:   &wait.Wait{},
	}
	request.waiting.Add(1)
	client.working.Add(1)
	defer client.working.Done()
	client.pendingReqs <- request
	// wait for response
	request.waiting.WaitWithTimeout(maxWait)
}

// Send sends a request to redis server
func (client *Client) Send(args [][]byte) redis.Reply {
	// check status
	if atomic.LoadInt32(&client.status) != running {
		return protocol.MakeErrReply("client closed")
	}
	req := &request{
		args:      args,
		heartbeat: false,
		waiting:   &wait.Wait{},
	}
	req.waiting.Add(1)
	client.working.Add(1)
	defer client.working.Done()
	client.pendingReqs <- req
	// wait for response
	timeout := req.waiting.WaitWithTimeout(maxWait)
	if timeout {
		return protocol.MakeErrReply("server time out")
	}
	if req.err != nil {
		return protocol.MakeErrReply("request failed " + req.err.Error())
	}
	return req.reply
}

// Do is Send with string arguments
func (client *Client) Do(args ...string) redis.Reply {
	cmd := make([][]byte, len(args))
	for i, a := range args {
		cmd[i] = []byte(a)
	}
	return client.Send(cmd)
}

// finishRequest finishes a request
func (client *Client) finishRequest(reply redis.Reply) {
	// 捕获和处理运行时的panic。
	defer func() {
		if err := recover(); err != nil {
			logger.Error(err, string(debug.Stack()))
		}
	}()
	// 从等待队列中取出一个请求
	request := <-client.waitingReqs
	if request == nil {
		return
	}
	// 将响应结果赋值给请求
	request.reply = reply
	if request.waiting != nil {
		request.waiting.Done()
	}
}

// failWaiting answers every request still waiting for a reply with err
func (client *Client) failWaiting(err error) {
	for {
		select {
		case req := <-client.waitingReqs:
			req.err = err
			req.waiting.Done()
		default:
			return
		}
	}
}

func (client *Client) handleRead() {
	// 解析从Redis服务器接收到的数据流
	ch := parser.ParseStream(client.conn)
	// 从通道中读取数据
	for payload := range ch {
		if payload.Err != nil {
			if atomic.LoadInt32(&client.status) != closed {
				logger.Warn("connection to " + client.addr + " lost: " + payload.Err.Error())
			}
			client.failWaiting(errConnClosed)
			return
		}
		// 完成请求
		client.finishRequest(payload.Data)
	}
}
