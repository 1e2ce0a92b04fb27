package dbgp

import (
	"context"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/utils/gosync"
	"github.com/sirupsen/logrus"
)

// NotificationCallback 会话生命周期事件的回调
type NotificationCallback func(event constants.DebugEventType, payload interface{})

// Session 一次逻辑调试连接
// 进程内只构造一个，由持有方显式传递，生命周期通过Reset和Close管理。
// 把连接管理、事务路由、命令API和错误捕获装配在一起：
// 路由器匹配不到的异步通知在这里被识别成错误并触发捕获。
type Session struct {
	port       int
	connection *Connection
	router     *Router
	client     *Client
	errors     *ErrorCapture
	util       *OutputUtil

	callback NotificationCallback
}

func NewSession(port int, callback NotificationCallback) *Session {
	// port为0时由系统分配临时端口，负数回退到默认端口
	if port < 0 {
		port = DefaultPort
	}
	s := &Session{
		port:     port,
		util:     NewOutputUtil(),
		callback: callback,
	}
	s.wire()
	return s
}

// wire 装配各组件并接好事件流
func (s *Session) wire() {
	s.connection = NewConnection()
	s.router = NewRouter(s.connection)
	s.client = NewClient(s.router)
	s.errors = NewErrorCapture(s.client)

	s.connection.OnFrame = s.handleFrame
	s.connection.OnConnected = func() {
		s.notify(constants.ConnectedEvent, nil)
	}
	s.connection.OnDisconnected = func() {
		// 连接断开时立刻唤醒所有挂起请求，不让调用方干等超时
		s.router.FailAll()
		s.notify(constants.DisconnectedEvent, nil)
	}
	s.router.SetUnmatchedHandler(s.handleUnmatched)
}

// Listen 开始监听引擎接入，返回实际监听的端口
func (s *Session) Listen() (int, error) {
	return s.connection.Listen(s.port)
}

// SetPort 修改引擎监听端口，下次Listen或Reset时生效
// 0或负数忽略，沿用当前配置
func (s *Session) SetPort(port int) {
	if port > 0 {
		s.port = port
	}
}

// handleFrame 处理解码后的协议帧
func (s *Session) handleFrame(frame Frame) {
	switch frame.Kind {
	case FrameInit:
		attrs := s.util.ParseResponse(frame.Payload).Attrs
		logrus.Infof("[Session] engine init, idekey=%s, file=%s", attrs["idekey"], attrs["fileuri"])
		s.notify(constants.InitEvent, attrs)
	case FrameMessage:
		s.router.Dispatch(frame)
	}
}

// handleUnmatched 处理没有匹配到挂起请求的异步通知
// 引擎报告运行时错误时走这条路径，触发一次完整的错误捕获
func (s *Session) handleUnmatched(response *Response) {
	if !s.isErrorNotification(response) {
		logrus.Debugf("[Session] ignore async notification: %v", response.Attrs)
		return
	}
	category, message, file, line := s.util.ParseErrorNotification(response.Raw)
	if file == "" {
		file = StripFileScheme(response.Attrs["filename"])
	}
	gosync.Go(context.Background(), func(ctx context.Context) {
		s.errors.CaptureErrorContext(ctx, file, line, category, message)
		s.notify(constants.ErrorEvent, nil)
	})
}

func (s *Session) isErrorNotification(response *Response) bool {
	if response.Attrs["reason"] == "error" || response.Attrs["reason"] == "exception" {
		return true
	}
	if response.Attrs["name"] == "error" {
		return true
	}
	return false
}

func (s *Session) notify(event constants.DebugEventType, payload interface{}) {
	if s.callback != nil {
		s.callback(event, payload)
	}
}

// Client 命令API
func (s *Session) Client() *Client {
	return s.client
}

// Errors 错误捕获子系统
func (s *Session) Errors() *ErrorCapture {
	return s.errors
}

// Status 当前连接状态
func (s *Session) Status() string {
	return s.connection.Status()
}

// Port 实际监听的端口
func (s *Session) Port() int {
	return s.connection.Port()
}

// Reset 关闭当前连接并重新监听
// 错误队列一并清空，事务id计数从头开始
func (s *Session) Reset() error {
	s.Close()
	s.wire()
	_, err := s.Listen()
	return err
}

// Close 关闭会话，可以重复调用
func (s *Session) Close() error {
	s.router.FailAll()
	return s.connection.Close()
}
