package dbgp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"

	e "github.com/fansqz/dbgp-client/error"
	"github.com/fansqz/dbgp-client/utils"
	"github.com/fansqz/dbgp-client/utils/gosync"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort 默认监听端口
	DefaultPort = 9000
	// MaxPortRetries 端口被占用时最多往后尝试的次数
	MaxPortRetries = 20
)

// Connection 管理监听socket和唯一的调试引擎连接
// 引擎接入后，socket读到的字节经过解码器切帧，逐帧交给上层处理。
// 同一时刻最多只有一个活跃的引擎socket。
type Connection struct {
	mutex    sync.Mutex
	listener net.Listener
	conn     net.Conn
	port     int
	closed   bool

	status *utils.StatusManager

	// OnFrame 每解出一帧调用一次
	OnFrame func(Frame)
	// OnConnected 引擎接入时调用
	OnConnected func()
	// OnDisconnected 引擎断开时调用
	OnDisconnected func()
}

func NewConnection() *Connection {
	return &Connection{
		status: utils.NewStatusManager(),
	}
}

// Listen 在回环地址上监听port端口，返回实际监听的端口
// 端口被占用时自动尝试port+1，最多MaxPortRetries次，其他绑定错误直接失败
func (c *Connection) Listen(port int) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.listener != nil {
		return 0, fmt.Errorf("already listening on port %d", c.port)
	}

	var listener net.Listener
	var err error
	for i := 0; i <= MaxPortRetries; i++ {
		listener, err = net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port+i))
		if err == nil {
			break
		}
		if !isAddrInUse(err) {
			return 0, fmt.Errorf("listen fail: %w", err)
		}
		if i < MaxPortRetries {
			logrus.Warnf("[Connection] port %d in use, trying %d", port+i, port+i+1)
		}
	}
	if listener == nil {
		return 0, fmt.Errorf("%w: tried %d-%d", e.ErrNoAvailablePort, port, port+MaxPortRetries)
	}

	c.listener = listener
	c.port = listener.Addr().(*net.TCPAddr).Port
	c.closed = false
	c.status.Set(utils.Listening)
	gosync.Go(context.Background(), func(ctx context.Context) {
		c.acceptLoop(ctx, listener)
	})
	logrus.Infof("[Connection] listening on 127.0.0.1:%d", c.port)
	return c.port, nil
}

// acceptLoop 接收引擎连接
// 新连接会替换当前活跃socket的记录，旧socket的断开回调只在它仍是活跃socket时生效
func (c *Connection) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			logrus.Infof("[Connection] stop accepting: %v", e.ErrListenerClosed)
			return
		}
		logrus.Infof("[Connection] engine connected from %s", conn.RemoteAddr())
		c.mutex.Lock()
		c.conn = conn
		c.mutex.Unlock()
		c.status.Set(utils.Connected)
		if c.OnConnected != nil {
			c.OnConnected()
		}
		gosync.Go(ctx, func(ctx context.Context) {
			c.readLoop(ctx, conn)
		})
	}
}

// readLoop 唯一的socket读循环
// 每个连接使用自己的解码器，避免前一个连接残留的半帧污染新连接
func (c *Connection) readLoop(ctx context.Context, conn net.Conn) {
	decoder := NewStreamDecoder()
	buffer := make([]byte, 4096)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			for _, frame := range decoder.Write(buffer[:n]) {
				if c.OnFrame != nil {
					c.OnFrame(frame)
				}
			}
		}
		if err != nil {
			c.handleDisconnect(conn)
			return
		}
	}
}

func (c *Connection) handleDisconnect(conn net.Conn) {
	conn.Close()
	c.mutex.Lock()
	if c.conn != conn {
		// 已经被新的连接替换，不处理
		c.mutex.Unlock()
		return
	}
	c.conn = nil
	listening := c.listener != nil
	c.mutex.Unlock()

	if listening {
		c.status.Set(utils.Listening)
	} else {
		c.status.Set(utils.Disconnected)
	}
	logrus.Infof("[Connection] engine disconnected")
	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}
}

// Write 向当前活跃的引擎socket写数据
func (c *Connection) Write(data []byte) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return e.ErrNotConnected
	}
	_, err := conn.Write(data)
	return err
}

// IsConnected 是否有活跃的引擎连接
func (c *Connection) IsConnected() bool {
	return c.status.Is(utils.Connected)
}

// Status 当前连接状态
func (c *Connection) Status() string {
	return c.status.Get()
}

// Port 实际监听的端口
func (c *Connection) Port() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.port
}

// Close 关闭活跃连接和监听socket，可以重复调用
func (c *Connection) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	listener := c.listener
	c.conn = nil
	c.listener = nil
	c.mutex.Unlock()

	if conn != nil {
		conn.Close()
	}
	if listener != nil {
		listener.Close()
	}
	c.status.Set(utils.Disconnected)
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
