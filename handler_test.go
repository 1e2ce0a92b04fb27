package main

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/protocol"
	"github.com/fansqz/dbgp-client/utils"
	"github.com/stretchr/testify/assert"
)

// freePort 拿一个空闲端口用于测试
func freePort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

// sendRequest 通过管道把请求交给分发器，读回一行响应
func sendRequest(t *testing.T, handler *SessionHandler, request interface{}) *protocol.Response {
	data, err := json.Marshal(request)
	assert.Nil(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	go handler.handle(serverConn, data)

	line, err := bufio.NewReader(clientConn).ReadBytes('\n')
	assert.Nil(t, err)
	response := &protocol.Response{}
	assert.Nil(t, json.Unmarshal(line, response))
	return response
}

// TestStartListenerRequestedPort 请求里带端口时，监听请求的端口而不是启动参数里的端口
func TestStartListenerRequestedPort(t *testing.T) {
	handler := NewSessionHandler(0)
	defer handler.session.Close()
	port := freePort(t)

	response := sendRequest(t, handler, &protocol.StartListenerRequest{
		Type:     constants.StartListener,
		Sequence: 1,
		Port:     port,
	})

	assert.True(t, response.Success)
	data := response.Data.(map[string]interface{})
	assert.Equal(t, float64(port), data["port"])
	assert.Equal(t, port, handler.session.Port())
	assert.Equal(t, utils.Listening, handler.session.Status())
}

// TestStartListenerDefaultPort 不带端口时沿用构造时的配置
func TestStartListenerDefaultPort(t *testing.T) {
	handler := NewSessionHandler(0)
	defer handler.session.Close()

	response := sendRequest(t, handler, &protocol.StartListenerRequest{
		Type:     constants.StartListener,
		Sequence: 2,
	})

	assert.True(t, response.Success)
	data := response.Data.(map[string]interface{})
	assert.True(t, data["port"].(float64) > 0)
}

// TestStartListenerReArm 已在监听时再次请求，按新端口重置会话
func TestStartListenerReArm(t *testing.T) {
	handler := NewSessionHandler(0)
	defer handler.session.Close()

	first := sendRequest(t, handler, &protocol.StartListenerRequest{
		Type:     constants.StartListener,
		Sequence: 3,
	})
	assert.True(t, first.Success)

	port := freePort(t)
	second := sendRequest(t, handler, &protocol.StartListenerRequest{
		Type:     constants.StartListener,
		Sequence: 4,
		Port:     port,
	})

	assert.True(t, second.Success)
	data := second.Data.(map[string]interface{})
	assert.Equal(t, float64(port), data["port"])
	assert.Equal(t, port, handler.session.Port())
}
