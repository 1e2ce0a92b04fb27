package dbgp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	e "github.com/fansqz/dbgp-client/error"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// TestListenPortRangeExhausted 整段端口都被占用时返回错误
// 最后一次尝试失败后不应该再提示继续重试
func TestListenPortRangeExhausted(t *testing.T) {
	base, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	defer base.Close()
	port := base.Addr().(*net.TCPAddr).Port

	// 把重试范围内的端口都占住，占不住的说明本来就被别人占着
	for i := 1; i <= MaxPortRetries; i++ {
		listener, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port+i))
		if err == nil {
			defer listener.Close()
		}
	}

	hook := test.NewGlobal()
	connection := NewConnection()
	_, err = connection.Listen(port)
	assert.True(t, errors.Is(err, e.ErrNoAvailablePort))

	// 范围外的端口没有被尝试，也不应该出现在日志里
	beyond := fmt.Sprintf("trying %d", port+MaxPortRetries+1)
	for _, entry := range hook.AllEntries() {
		assert.False(t, strings.Contains(entry.Message, beyond),
			"unexpected retry log: %s", entry.Message)
	}
}

// TestCloseStopsAccepting 关闭监听socket后接收循环退出并记录原因
func TestCloseStopsAccepting(t *testing.T) {
	hook := test.NewGlobal()
	connection := NewConnection()
	_, err := connection.Listen(0)
	assert.Nil(t, err)
	assert.Nil(t, connection.Close())

	deadline := time.After(time.Second)
	for {
		logged := false
		for _, entry := range hook.AllEntries() {
			if strings.Contains(entry.Message, e.ErrListenerClosed.Error()) {
				logged = true
			}
		}
		if logged {
			break
		}
		select {
		case <-deadline:
			t.Fatal("accept loop exit was not logged")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
