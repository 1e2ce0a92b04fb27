package main

import (
	"flag"
	"fmt"
	"net"

	"github.com/fansqz/dbgp-client/dbgp"
	"github.com/sirupsen/logrus"
)

// 定义版本号
const Version = "1.0.0"

func main() {
	//启动日志
	SetupLogger()
	defer CloseLogger()

	showVersion := flag.Bool("version", false, "Show the version number")
	port := flag.String("port", "8889", "TCP port to listen on for control clients")
	debugPort := flag.Int("debugPort", dbgp.DefaultPort, "TCP port to listen on for the debugger engine")
	flag.Parse()

	// 检查是否需要显示版本信息
	if *showVersion {
		fmt.Printf("Version: %s\n", Version)
		return
	}

	// 监听控制端口
	listener, err := net.Listen("tcp", ":"+*port)
	if err != nil {
		fmt.Printf("listen control port fail: %v\n", err)
		return
	}
	defer listener.Close()
	logrus.Infof("control server listening at %s", listener.Addr().String())

	// 创建调试会话，引擎监听由startListener请求触发
	handler := NewSessionHandler(*debugPort)
	defer handler.session.Close()

	serveControl(listener, handler)
}
