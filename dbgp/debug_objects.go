package dbgp

import (
	"time"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/utils"
)

// Breakpoint 表示引擎中的一个断点
// 客户端不缓存断点，List时总是从引擎重新获取
type Breakpoint struct {
	ID   string `json:"id"`   // 引擎分配的断点id
	File string `json:"file"` // 文件路径，已去除file://前缀
	Line int    `json:"line"` // 行号，从1开始
	// Condition 条件断点的条件表达式
	Condition string `json:"condition,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// Variable 变量
// 每次查询时重新生成，值已经过base64解码
type Variable struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Type     string `json:"type"`
	Value    string `json:"value"`
}

// StackFrame 栈帧
type StackFrame struct {
	Level int    `json:"level"` // 栈深度，0为最内层
	Type  string `json:"type"`  // 栈帧类型
	File  string `json:"file"`
	Line  int    `json:"line"`
	Where string `json:"where,omitempty"` // 可读的位置描述
}

// ErrorEvent 捕获到的错误及其完整上下文
type ErrorEvent struct {
	ID      string                  `json:"id"`
	Type    constants.ErrorCategory `json:"type"`
	Message string                  `json:"message"`
	File    string                  `json:"file"`
	Line    int                     `json:"line"`
	// SourceContext 出错行附近的源码
	SourceContext []utils.SourceLine `json:"sourceContext"`
	StackTrace    []*StackFrame      `json:"stackTrace"`
	// 捕获时的变量快照，引擎不可用时为空
	LocalVariables  []*Variable `json:"localVariables"`
	GlobalVariables []*Variable `json:"globalVariables"`
	Timestamp       time.Time   `json:"timestamp"`
}
