package main

import (
	"bufio"
	"net"

	"github.com/sirupsen/logrus"
)

// serveControl 接收工具层的控制连接
// 控制连接可以断开重连，但同一时刻只有最近接入的连接会收到异步事件推送。
func serveControl(listener net.Listener, handler *SessionHandler) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			logrus.Infof("control listener closed: %v", err)
			return
		}
		go handleConnection(conn, handler)
	}
}

// handleConnection handles a connection from a single control client.
// 每行一个JSON请求，响应和异步事件也按行写回。
func handleConnection(conn net.Conn, handler *SessionHandler) {
	logrus.Infof("control client connected from %s", conn.RemoteAddr())
	handler.setEventConn(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		request := make([]byte, len(line))
		copy(request, line)
		handler.handle(conn, request)
	}
	if err := scanner.Err(); err != nil {
		logrus.Warnf("control connection error: %v", err)
	}

	logrus.Infof("closing control connection from %s", conn.RemoteAddr())
	handler.clearEventConn(conn)
	conn.Close()
}
