package protocol

import "github.com/fansqz/dbgp-client/constants"

// ConnectedEvent 调试引擎接入事件
type ConnectedEvent struct {
	Event constants.DebugEventType `json:"event"`
	Port  int                      `json:"port"`
}

func NewConnectedEvent(port int) *ConnectedEvent {
	return &ConnectedEvent{
		Event: constants.ConnectedEvent,
		Port:  port,
	}
}

// DisconnectedEvent 调试引擎断开事件
// 该event表明引擎socket已经断开，之后的命令会立即失败，直到引擎重新接入
type DisconnectedEvent struct {
	Event constants.DebugEventType `json:"event"`
}

func NewDisconnectedEvent() *DisconnectedEvent {
	return &DisconnectedEvent{
		Event: constants.DisconnectedEvent,
	}
}

// InitEvent 引擎握手事件
// 携带握手帧上的属性，比如idekey和启动文件
type InitEvent struct {
	Event constants.DebugEventType `json:"event"`
	Attrs map[string]string        `json:"attrs"`
}

func NewInitEvent(attrs map[string]string) *InitEvent {
	return &InitEvent{
		Event: constants.InitEvent,
		Attrs: attrs,
	}
}

// ErrorCapturedEvent 错误捕获事件
// 该event表明错误队列中有新的错误可以消费
type ErrorCapturedEvent struct {
	Event constants.DebugEventType `json:"event"`
}

func NewErrorCapturedEvent() *ErrorCapturedEvent {
	return &ErrorCapturedEvent{
		Event: constants.ErrorEvent,
	}
}
