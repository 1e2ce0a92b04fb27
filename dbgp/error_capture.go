package dbgp

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxQueueSize 错误队列的容量上限
	// 队列满时丢最旧的，不拒绝新的捕获。用途是最近崩溃的排查，不是完整审计。
	DefaultMaxQueueSize = 100
	// DefaultContextRadius 默认提取出错行前后多少行源码
	DefaultContextRadius = 5
	// DefaultWaitTimeout WaitForError的默认超时
	DefaultWaitTimeout = time.Second * 30
)

// ErrorCapture 错误捕获子系统
// 把异步到达的错误通知和同步等待的消费方桥接起来：
// 捕获时补全上下文后入队（FIFO，有界），消费方通过WaitForError取走或超时拿到空。
type ErrorCapture struct {
	mutex   sync.Mutex
	queue   *linkedlistqueue.Queue
	waiters []chan *ErrorEvent

	maxSize int
	radius  int
	client  *Client
}

func NewErrorCapture(client *Client) *ErrorCapture {
	return &ErrorCapture{
		queue:   linkedlistqueue.New(),
		maxSize: DefaultMaxQueueSize,
		radius:  DefaultContextRadius,
		client:  client,
	}
}

// CaptureErrorContext 捕获一个错误的完整上下文并入队
// 源码上下文、栈帧、局部和全局变量的采集都是尽力而为：
// 引擎可能已经不在可中断状态，任何一步失败只会让对应字段为空，不会中止捕获。
func (ec *ErrorCapture) CaptureErrorContext(ctx context.Context, file string, line int, errType constants.ErrorCategory, message string) *ErrorEvent {
	event := &ErrorEvent{
		ID:            uuid.NewString(),
		Type:          errType,
		Message:       message,
		File:          file,
		Line:          line,
		SourceContext: utils.GetSourceContext(file, line, ec.radius),
		Timestamp:     time.Now(),
	}

	if stack, err := ec.client.GetStackTrace(ctx); err != nil {
		logrus.Warnf("[ErrorCapture] stack trace unavailable: %v", err)
	} else {
		event.StackTrace = stack
	}
	if locals, err := ec.client.GetVariables(ctx, constants.LocalContext); err != nil {
		logrus.Warnf("[ErrorCapture] local variables unavailable: %v", err)
	} else {
		event.LocalVariables = locals
	}
	if globals, err := ec.client.GetVariables(ctx, constants.GlobalContext); err != nil {
		logrus.Warnf("[ErrorCapture] global variables unavailable: %v", err)
	} else {
		event.GlobalVariables = globals
	}

	ec.enqueue(event)
	return event
}

// enqueue 入队，有等待方时直接交付给最早注册的等待方
func (ec *ErrorCapture) enqueue(event *ErrorEvent) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	if len(ec.waiters) > 0 {
		waiter := ec.waiters[0]
		ec.waiters = ec.waiters[1:]
		waiter <- event
		return
	}

	ec.queue.Enqueue(event)
	for ec.queue.Size() > ec.maxSize {
		// 队列满，丢最旧的
		ec.queue.Dequeue()
	}
}

// WaitForError 等待下一个错误事件
// 队列非空时立即按FIFO返回；否则挂起直到新错误入队或超时。
// 超时返回nil，这是轮询原语，不是失败。
func (ec *ErrorCapture) WaitForError(ctx context.Context, timeout time.Duration) *ErrorEvent {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	ec.mutex.Lock()
	if value, ok := ec.queue.Dequeue(); ok {
		ec.mutex.Unlock()
		return value.(*ErrorEvent)
	}
	waiter := make(chan *ErrorEvent, 1)
	ec.waiters = append(ec.waiters, waiter)
	ec.mutex.Unlock()

	select {
	case event := <-waiter:
		return event
	case <-time.After(timeout):
	case <-ctx.Done():
	}

	ec.removeWaiter(waiter)
	// 超时和交付可能同时发生，事件已经进了waiter就不能丢
	select {
	case event := <-waiter:
		return event
	default:
		return nil
	}
}

// removeWaiter 把超时的等待方从注册表中摘掉
func (ec *ErrorCapture) removeWaiter(waiter chan *ErrorEvent) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	for i, w := range ec.waiters {
		if w == waiter {
			ec.waiters = append(ec.waiters[:i], ec.waiters[i+1:]...)
			return
		}
	}
}

// GetQueuedErrors 队列快照，不消费队列内容
func (ec *ErrorCapture) GetQueuedErrors() []*ErrorEvent {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	values := ec.queue.Values()
	answer := make([]*ErrorEvent, 0, len(values))
	for _, value := range values {
		answer = append(answer, value.(*ErrorEvent))
	}
	return answer
}

// ClearErrorQueue 清空错误队列
func (ec *ErrorCapture) ClearErrorQueue() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.queue.Clear()
}
