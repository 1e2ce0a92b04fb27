package constants

type DebugMessageType string

const (
	RequestMessage  DebugMessageType = "request"
	ResponseMessage DebugMessageType = "response"
	EventMessage    DebugMessageType = "event"
)

// RequestType 控制请求操作类型
type RequestType string

const (
	// StartListener 启动调试监听，等待解释器接入，返回实际监听的端口。
	StartListener RequestType = "startListener"
	// StopListener 关闭监听和当前的调试连接，返回可能出现的错误。
	StopListener RequestType = "stopListener"
	// GetStatus 获取调试引擎当前状态，返回可能出现的错误。
	GetStatus RequestType = "getStatus"
	// Run 继续执行程序，直到遇到下一个断点或程序结束，返回可能出现的错误。
	Run RequestType = "run"
	// Step 单步调试，stepType区分是否进入函数内部，返回可能出现的错误。
	Step RequestType = "step"
	// Stop 终止被调试程序，返回可能出现的错误。
	Stop RequestType = "stop"
	// CaptureError 主动捕获当前错误上下文并入队。
	CaptureError RequestType = "captureError"
	// WaitForError 等待下一个错误事件，超时返回空。
	WaitForError RequestType = "waitForError"
	// ListErrors 查看错误队列，不消费队列内容。
	ListErrors RequestType = "listErrors"
	// ClearErrors 清空错误队列。
	ClearErrors RequestType = "clearErrors"
	// GetSourceContext 获取某个文件某行附近的源码。
	GetSourceContext RequestType = "getSourceContext"
	// SetBreakpoint 添加断点，返回引擎分配的断点id。
	SetBreakpoint RequestType = "setBreakpoint"
	// RemoveBreakpoint 移除断点。
	RemoveBreakpoint RequestType = "removeBreakpoint"
	// ListBreakpoints 获取引擎中的断点列表。
	ListBreakpoints RequestType = "listBreakpoints"
	// GetVariables 获取某个作用域的变量列表。
	GetVariables RequestType = "getVariables"
	// Evaluate 在当前栈帧中求值表达式。
	Evaluate RequestType = "evaluate"
	// StackTrace 获取栈帧列表。
	StackTrace RequestType = "stackTrace"
	// ApplyFix 校验并重写文件中的某一行。
	ApplyFix RequestType = "applyFix"
)

type DebugEventType string

const (
	ConnectedEvent    DebugEventType = "connected"
	DisconnectedEvent DebugEventType = "disconnected"
	InitEvent         DebugEventType = "init"
	ErrorEvent        DebugEventType = "error"
)

// StepType 单步调试类型
type StepType string

const (
	StepIn   StepType = "stepIn"
	StepOut  StepType = "stepOut"
	StepOver StepType = "stepOver"
)

// ContextID 变量作用域
// 协议中local作用域为0，global作用域为1
type ContextID int

const (
	LocalContext  ContextID = 0
	GlobalContext ContextID = 1
)

// ErrorCategory 捕获错误的分类
type ErrorCategory string

const (
	RuntimeError   ErrorCategory = "runtime"
	SyntaxError    ErrorCategory = "syntax"
	ExceptionError ErrorCategory = "exception"
)
