package dbgp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/utils"
	"github.com/stretchr/testify/assert"
)

// testEngine 通过真实TCP接入会话的假引擎
// 读取NUL结尾的命令并按协议回发带长度头的XML帧
type testEngine struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestEngine(t *testing.T, port int) *testEngine {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	assert.Nil(t, err)
	return &testEngine{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (e *testEngine) sendInit() {
	e.sendFrame(`<init appid="1234" idekey="test" fileuri="file:///scripts/main.ahk" language="AutoHotkey" protocol_version="1.0"/>`)
}

func (e *testEngine) sendFrame(xml string) {
	_, err := fmt.Fprintf(e.conn, "%d\x00%s\x00", len(xml), xml)
	assert.Nil(e.t, err)
}

// readCommand 读一条NUL结尾的命令，返回动词和事务id
func (e *testEngine) readCommand() (string, int) {
	chunk, err := e.reader.ReadString(0)
	assert.Nil(e.t, err)
	command := strings.TrimRight(chunk, "\x00")
	verb := strings.SplitN(command, " ", 2)[0]
	id := 0
	if m := regexp.MustCompile(`-i (\d+)`).FindStringSubmatch(command); m != nil {
		id, _ = strconv.Atoi(m[1])
	}
	return verb, id
}

func (e *testEngine) close() {
	e.conn.Close()
}

// waitEvent 等待指定的生命周期事件出现
func waitEvent(t *testing.T, events chan constants.DebugEventType, expected constants.DebugEventType) {
	deadline := time.After(time.Second * 2)
	for {
		select {
		case event := <-events:
			if event == expected {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", expected)
		}
	}
}

// TestSessionEndToEnd 完整走一遍：监听、引擎接入、命令往返、错误捕获、断开
func TestSessionEndToEnd(t *testing.T) {
	events := make(chan constants.DebugEventType, 20)
	session := NewSession(0, func(event constants.DebugEventType, payload interface{}) {
		events <- event
	})
	defer session.Close()

	port, err := session.Listen()
	assert.Nil(t, err)
	assert.Equal(t, utils.Listening, session.Status())

	engine := dialTestEngine(t, port)
	defer engine.close()
	engine.sendInit()

	waitEvent(t, events, constants.ConnectedEvent)
	waitEvent(t, events, constants.InitEvent)
	assert.Equal(t, utils.Connected, session.Status())

	// 命令往返
	go func() {
		verb, id := engine.readCommand()
		assert.Equal(t, "run", verb)
		engine.sendFrame(fmt.Sprintf(`<response command="run" transaction_id="%d" status="break" reason="ok"/>`, id))
	}()
	status, err := session.Client().Run(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "break", status)

	// 引擎主动上报错误，触发一次捕获
	// 捕获过程会尝试拉取栈帧和两个作用域的变量，引擎逐条应答
	go func() {
		for i := 0; i < 3; i++ {
			verb, id := engine.readCommand()
			switch verb {
			case "stack_get":
				engine.sendFrame(fmt.Sprintf(`<response command="stack_get" transaction_id="%d">`+
					`<stack level="0" type="file" filename="file:///scripts/main.ahk" lineno="42" where="Main"/>`+
					`</response>`, id))
			case "context_get":
				engine.sendFrame(fmt.Sprintf(`<response command="context_get" transaction_id="%d">`+
					`<property name="x" fullname="$x" type="int" encoding="base64">MQ==</property>`+
					`</response>`, id))
			}
		}
	}()
	engine.sendFrame(`<response command="run" transaction_id="0" status="break" reason="error">` +
		`<error code="2"><message filename="file:///scripts/main.ahk" lineno="42">` +
		`<![CDATA[Division by zero]]></message></error></response>`)

	waitEvent(t, events, constants.ErrorEvent)
	event := session.Errors().WaitForError(context.Background(), time.Second)
	assert.NotNil(t, event)
	assert.Equal(t, "Division by zero", event.Message)
	assert.Equal(t, "/scripts/main.ahk", event.File)
	assert.Equal(t, 42, event.Line)
	assert.Equal(t, 1, len(event.StackTrace))
	assert.Equal(t, 1, len(event.LocalVariables))
	assert.Equal(t, 1, len(event.GlobalVariables))

	// 引擎断开后回到监听状态，命令立即失败
	engine.close()
	waitEvent(t, events, constants.DisconnectedEvent)
	assert.Equal(t, utils.Listening, session.Status())
	_, err = session.Client().Run(context.Background())
	assert.NotNil(t, err)
}

// TestSessionPortConflict 端口被占用时自动向后找可用端口
func TestSessionPortConflict(t *testing.T) {
	first := NewConnection()
	port, err := first.Listen(0)
	assert.Nil(t, err)
	defer first.Close()

	second := NewConnection()
	retried, err := second.Listen(port)
	assert.Nil(t, err)
	defer second.Close()
	assert.Equal(t, port+1, retried)
}

func TestConnectionCloseIdempotent(t *testing.T) {
	connection := NewConnection()
	_, err := connection.Listen(0)
	assert.Nil(t, err)
	assert.Nil(t, connection.Close())
	assert.Nil(t, connection.Close())
	assert.Equal(t, utils.Disconnected, connection.Status())
}

// TestSessionReset 重置后重新监听，错误队列清空
func TestSessionReset(t *testing.T) {
	session := NewSession(0, nil)
	defer session.Close()

	_, err := session.Listen()
	assert.Nil(t, err)

	session.Errors().CaptureErrorContext(context.Background(), "/nonexistent/a.ahk", 1, constants.RuntimeError, "stale")
	assert.Equal(t, 1, len(session.Errors().GetQueuedErrors()))

	assert.Nil(t, session.Reset())
	assert.Equal(t, utils.Listening, session.Status())
	assert.Empty(t, session.Errors().GetQueuedErrors())
}
