package dbgp

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/stretchr/testify/assert"
)

// newTestCapture 引擎不在线的捕获子系统
// 栈和变量的补全会失败，但捕获本身必须照常进行
func newTestCapture() *ErrorCapture {
	return NewErrorCapture(NewClient(NewRouter(&fakeTransport{connected: false})))
}

// TestCaptureWithUnavailableEngine 引擎不可用时各补全步骤降级为空，不中止捕获
func TestCaptureWithUnavailableEngine(t *testing.T) {
	capture := newTestCapture()

	event := capture.CaptureErrorContext(context.Background(), "/nonexistent/a.ahk", 3, constants.RuntimeError, "boom")
	assert.NotNil(t, event)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "boom", event.Message)
	assert.Equal(t, constants.RuntimeError, event.Type)
	assert.Empty(t, event.StackTrace)
	assert.Empty(t, event.LocalVariables)
	assert.Empty(t, event.GlobalVariables)
	// 文件不存在，上下文是一条占位行
	assert.Equal(t, 1, len(event.SourceContext))
	assert.True(t, event.SourceContext[0].IsFaultLine)

	assert.Equal(t, 1, len(capture.GetQueuedErrors()))
}

// TestCaptureSourceContext 出错行前后radius行，出错行被标记
func TestCaptureSourceContext(t *testing.T) {
	file := path.Join(t.TempDir(), "main.ahk")
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	assert.Nil(t, os.WriteFile(file, []byte(strings.Join(lines, "\n")), 0644))

	capture := newTestCapture()
	event := capture.CaptureErrorContext(context.Background(), file, 10, constants.RuntimeError, "boom")

	assert.Equal(t, 11, len(event.SourceContext))
	assert.Equal(t, 5, event.SourceContext[0].Number)
	assert.Equal(t, 15, event.SourceContext[10].Number)
	for _, line := range event.SourceContext {
		assert.Equal(t, line.Number == 10, line.IsFaultLine)
		assert.Equal(t, fmt.Sprintf("line %d", line.Number), line.Text)
	}
}

// TestQueueBound 队列有界，超出上限时丢最旧的
func TestQueueBound(t *testing.T) {
	capture := newTestCapture()
	ctx := context.Background()

	for i := 0; i <= DefaultMaxQueueSize; i++ {
		capture.CaptureErrorContext(ctx, "/nonexistent/a.ahk", 1, constants.RuntimeError, fmt.Sprintf("marker-%d", i))
	}

	queued := capture.GetQueuedErrors()
	assert.Equal(t, DefaultMaxQueueSize, len(queued))
	// 最旧的marker-0被驱逐
	assert.Equal(t, "marker-1", queued[0].Message)
	assert.Equal(t, fmt.Sprintf("marker-%d", DefaultMaxQueueSize), queued[len(queued)-1].Message)
}

// TestWaitForErrorOrdering 已入队的错误按入队顺序被消费
func TestWaitForErrorOrdering(t *testing.T) {
	capture := newTestCapture()
	ctx := context.Background()

	capture.CaptureErrorContext(ctx, "/nonexistent/a.ahk", 1, constants.RuntimeError, "first")
	capture.CaptureErrorContext(ctx, "/nonexistent/a.ahk", 2, constants.RuntimeError, "second")

	event := capture.WaitForError(ctx, time.Second)
	assert.NotNil(t, event)
	assert.Equal(t, "first", event.Message)

	event = capture.WaitForError(ctx, time.Second)
	assert.NotNil(t, event)
	assert.Equal(t, "second", event.Message)

	// 队列已空，短超时返回空而不是报错
	event = capture.WaitForError(ctx, 50*time.Millisecond)
	assert.Nil(t, event)
}

// TestWaitForErrorWakeup 等待方在新错误入队时被唤醒，事件直接交付不再入队
func TestWaitForErrorWakeup(t *testing.T) {
	capture := newTestCapture()
	ctx := context.Background()

	done := make(chan *ErrorEvent, 1)
	go func() {
		done <- capture.WaitForError(ctx, time.Second*5)
	}()
	// 等waiter注册好
	for {
		capture.mutex.Lock()
		registered := len(capture.waiters) > 0
		capture.mutex.Unlock()
		if registered {
			break
		}
		time.Sleep(time.Millisecond)
	}

	capture.CaptureErrorContext(ctx, "/nonexistent/a.ahk", 1, constants.RuntimeError, "wakeup")

	select {
	case event := <-done:
		assert.NotNil(t, event)
		assert.Equal(t, "wakeup", event.Message)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken up")
	}
	assert.Empty(t, capture.GetQueuedErrors())
}

func TestClearErrorQueue(t *testing.T) {
	capture := newTestCapture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		capture.CaptureErrorContext(ctx, "/nonexistent/a.ahk", i, constants.RuntimeError, "x")
	}
	assert.Equal(t, 3, len(capture.GetQueuedErrors()))

	capture.ClearErrorQueue()
	assert.Empty(t, capture.GetQueuedErrors())
}
