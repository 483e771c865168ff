package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hdt3213/godis/interface/tcp"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/wait"
)

// Config stores tcp server properties
type Config struct {
	Address string `yaml:"address"`
	// MaxConnect 同时服务的连接上限，超出的连接会被直接关闭，0 表示不限制
	MaxConnect uint32 `yaml:"max-connect"`
	// Timeout 关闭时等待已有连接退出的最长时间，0 表示一直等待
	Timeout time.Duration `yaml:"timeout"`
}

// ClientCounter Record the number of clients in the current redis server
var ClientCounter int32

// ListenAndServeWithSignal binds port and handle requests, blocking until a termination signal arrives
func ListenAndServeWithSignal(cfg *Config, handler tcp.Handler) error {
	closeChan := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	// 监听系统指定信号 SIGHUP：终端挂起或者控制进程终止，SIGQUIT：终端退出，SIGTERM：终止信号，SIGINT：中断信号
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
			closeChan <- struct{}{} // 发送关闭信号
		}
	}()
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("bind: %s, start listening...", cfg.Address))
	Serve(cfg, listener, handler, closeChan)
	return nil
}

// ListenAndServe handles requests on listener without a connection limit, blocking until close
func ListenAndServe(listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}) {
	Serve(&Config{}, listener, handler, closeChan)
}

// Serve handles requests on listener, blocking until close and the connections are drained
// or cfg.Timeout passes.
func Serve(cfg *Config, listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}) {
	// 监听错误信号
	errCh := make(chan error, 1)
	defer close(errCh)
	go func() {
		select {
		case <-closeChan:
			logger.Info("get exit signal")
		case er := <-errCh:
			logger.Info(fmt.Sprintf("accept error: %s", er.Error()))
		}
		logger.Info("shutting down...")
		_ = listener.Close()
		_ = handler.Close() //close connections
	}()

	ctx := context.Background()
	var waitDone wait.Wait
	var active int32
	for {
		//  Accept 会一直阻塞直到有新的连接建立或者listen中断才会返回
		conn, err := listener.Accept()
		if err != nil {
			// 判断当前错误是否是一个临时错误，如果是则等待5ms后重试
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Info(fmt.Sprintf("accept occurs temporary error: %v, retry in 5ms", err))
				time.Sleep(5 * time.Millisecond)
				continue
			}
			errCh <- err
			break
		}
		if cfg.MaxConnect > 0 && atomic.LoadInt32(&active) >= int32(cfg.MaxConnect) {
			logger.Warn(fmt.Sprintf("max connections %d reached, refuse %s", cfg.MaxConnect, conn.RemoteAddr()))
			_ = conn.Close()
			continue
		}
		atomic.AddInt32(&active, 1)
		atomic.AddInt32(&ClientCounter, 1)
		waitDone.Add(1)
		// 开启新的 goroutine 处理该连接
		go func() {
			defer func() {
				waitDone.Done()
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&ClientCounter, -1)
			}()
			handler.Handle(ctx, conn)
		}()
	}
	if cfg.Timeout <= 0 {
		waitDone.Wait()
		return
	}
	if waitDone.WaitWithTimeout(cfg.Timeout) {
		logger.Warn(fmt.Sprintf("connections still open after %s, stop waiting", cfg.Timeout))
	}
}
