package protocol

import "github.com/fansqz/dbgp-client/constants"

// BaseRequest 所有请求的公共部分，用于识别请求类型
type BaseRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint `json:"sequence"`
}

// StartListenerRequest 启动调试监听请求
type StartListenerRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint `json:"sequence"`
	// Port 期望监听的端口，0表示沿用当前配置
	Port int `json:"port"`
}

// StepRequest 单步调试请求
type StepRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint               `json:"sequence"`
	StepType constants.StepType `json:"stepType"`
}

// SetBreakpointRequest 添加断点请求
type SetBreakpointRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint   `json:"sequence"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	// Condition 条件断点的条件表达式，可以为空
	Condition string `json:"condition"`
}

// RemoveBreakpointRequest 移除断点请求
type RemoveBreakpointRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint   `json:"sequence"`
	ID       string `json:"id"`
}

// GetVariablesRequest 获取变量列表请求
// context为0表示局部作用域，1表示全局作用域
type GetVariablesRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint                `json:"sequence"`
	Context  constants.ContextID `json:"context"`
}

// EvaluateRequest 表达式求值请求
type EvaluateRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence   uint   `json:"sequence"`
	Expression string `json:"expression"`
}

// CaptureErrorRequest 主动捕获错误上下文请求
type CaptureErrorRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint   `json:"sequence"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	// ErrorType 错误分类，空时按运行时错误处理
	ErrorType constants.ErrorCategory `json:"errorType"`
	Message   string                  `json:"message"`
}

// WaitForErrorRequest 等待下一个错误请求
type WaitForErrorRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint `json:"sequence"`
	// TimeoutMs 等待超时毫秒数，0表示默认30秒
	TimeoutMs int `json:"timeoutMs"`
}

// SourceContextRequest 获取源码上下文请求
type SourceContextRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence uint   `json:"sequence"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	// Radius 提取出错行前后多少行，0表示默认5行
	Radius int `json:"radius"`
}

// ApplyFixRequest 校验并重写某一行的请求
// Original必须和文件中该行的当前内容一致，否则拒绝重写
type ApplyFixRequest struct {
	Type constants.RequestType `json:"type"`
	// 请求序列号
	Sequence    uint   `json:"sequence"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}
