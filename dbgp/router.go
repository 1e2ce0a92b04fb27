package dbgp

import (
	"context"
	"fmt"
	"sync"
	"time"

	e "github.com/fansqz/dbgp-client/error"
	"github.com/sirupsen/logrus"
)

const (
	// CommandTimeout 每条命令等待响应的统一超时
	CommandTimeout = time.Second * 10
)

// transport 路由器向引擎写命令的出口
// 由Connection实现，测试中可以换成假实现
type transport interface {
	Write(data []byte) error
	IsConnected() bool
}

// Router 事务路由器
// 给每条出站命令分配单调递增的事务id，并把异步到达的响应匹配回挂起的调用方。
// 同一会话内事务id永不复用，每个挂起请求只会被唤醒一次。
type Router struct {
	mutex   sync.Mutex
	nextID  int
	pending map[int]chan *Response

	transport transport
	util      *OutputUtil

	// 没有匹配到挂起请求的响应走这里，交给异步观察者处理
	onUnmatched func(*Response)
}

func NewRouter(t transport) *Router {
	return &Router{
		nextID:    1,
		pending:   make(map[int]chan *Response),
		transport: t,
		util:      NewOutputUtil(),
	}
}

// SetUnmatchedHandler 设置未匹配响应的处理回调
func (r *Router) SetUnmatchedHandler(handler func(*Response)) {
	r.onUnmatched = handler
}

// Send 发送一条命令并等待匹配的响应
// 未连接时立即失败，不排队
func (r *Router) Send(ctx context.Context, verb string, args ...string) (*Response, error) {
	return r.SendWithTimeout(ctx, CommandTimeout, verb, args...)
}

// SendWithTimeout 发送一条命令，超时后挂起请求会被移除并返回超时错误
// 超时通常意味着引擎已经挂起或崩溃，调用方需要自行决定是否放弃会话
func (r *Router) SendWithTimeout(ctx context.Context, timeout time.Duration, verb string, args ...string) (*Response, error) {
	if !r.transport.IsConnected() {
		return nil, fmt.Errorf("%w: cannot send %q", e.ErrNotConnected, verb)
	}

	r.mutex.Lock()
	id := r.nextID
	r.nextID++
	ch := make(chan *Response, 1)
	r.pending[id] = ch
	r.mutex.Unlock()

	if err := r.transport.Write(EncodeCommand(verb, args, id)); err != nil {
		r.remove(id)
		return nil, fmt.Errorf("send %q fail: %w", verb, err)
	}

	select {
	case response, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: %q aborted", e.ErrNotConnected, verb)
		}
		return response, nil
	case <-time.After(timeout):
		r.remove(id)
		return nil, fmt.Errorf("%w: %q (transaction %d)", e.ErrCommandTimeout, verb, id)
	case <-ctx.Done():
		r.remove(id)
		return nil, ctx.Err()
	}
}

// Dispatch 处理一帧解码后的消息
// 带有已注册事务id的响应唤醒对应的调用方；其余消息不视为错误，转给异步观察者
func (r *Router) Dispatch(frame Frame) {
	response := r.util.ParseResponse(frame.Payload)
	id := response.TransactionID()

	r.mutex.Lock()
	ch, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mutex.Unlock()

	if ok {
		ch <- response
		return
	}
	if r.onUnmatched != nil {
		r.onUnmatched(response)
	} else {
		logrus.Debugf("[Router] unmatched response, transaction %d", id)
	}
}

// FailAll 连接断开时立即唤醒所有挂起的请求
// 不然调用方只能等到各自的超时才发现会话已经没了
func (r *Router) FailAll() {
	r.mutex.Lock()
	pending := r.pending
	r.pending = make(map[int]chan *Response)
	r.mutex.Unlock()

	for id, ch := range pending {
		logrus.Warnf("[Router] abort pending transaction %d on disconnect", id)
		close(ch)
	}
}

// PendingCount 当前挂起的请求数
func (r *Router) PendingCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.pending)
}

func (r *Router) remove(id int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.pending, id)
}
