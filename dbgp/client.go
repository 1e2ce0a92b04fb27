package dbgp

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/fansqz/dbgp-client/constants"
)

// Client 调试命令API
// 每个方法构造一条协议命令，经路由器发送，再把解析后的响应映射成类型化结果。
// 所有方法都要求引擎已接入，未连接时立即返回错误而不是等待超时。
type Client struct {
	router *Router
	util   *OutputUtil
}

func NewClient(router *Router) *Client {
	return &Client{
		router: router,
		util:   NewOutputUtil(),
	}
}

// Run 继续执行，直到下一个断点或程序结束
func (c *Client) Run(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "run")
}

// StepInto 单步，会进入函数内部
func (c *Client) StepInto(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "step_into")
}

// StepOver 单步，不进入函数内部
func (c *Client) StepOver(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "step_over")
}

// StepOut 单步退出当前函数
func (c *Client) StepOut(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "step_out")
}

// Stop 终止被调试程序
func (c *Client) Stop(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "stop")
}

// GetStatus 获取引擎当前状态
func (c *Client) GetStatus(ctx context.Context) (string, error) {
	return c.sendControl(ctx, "status")
}

// sendControl 执行控制类命令都只带事务id，结果取响应的status属性
func (c *Client) sendControl(ctx context.Context, verb string) (string, error) {
	response, err := c.router.Send(ctx, verb)
	if err != nil {
		return "", err
	}
	return response.Attrs["status"], nil
}

// SetBreakpoint 设置行断点，返回引擎分配的断点id
// 文件以file:// URI形式传递，反斜杠统一成斜杠；条件表达式base64编码后追加在末尾
func (c *Client) SetBreakpoint(ctx context.Context, file string, line int, condition string) (string, error) {
	args := []string{
		"-t", "line",
		"-f", ToFileURI(file),
		"-n", strconv.Itoa(line),
	}
	if condition != "" {
		args = append(args, "--", base64.StdEncoding.EncodeToString([]byte(condition)))
	}
	response, err := c.router.Send(ctx, "breakpoint_set", args...)
	if err != nil {
		return "", err
	}
	return response.Attrs["id"], nil
}

// RemoveBreakpoint 移除断点
func (c *Client) RemoveBreakpoint(ctx context.Context, id string) error {
	_, err := c.router.Send(ctx, "breakpoint_remove", "-d", id)
	return err
}

// ListBreakpoints 获取引擎中的断点列表
// 断点表以引擎为准，这里每次都重新拉取，不做本地缓存
func (c *Client) ListBreakpoints(ctx context.Context) ([]*Breakpoint, error) {
	response, err := c.router.Send(ctx, "breakpoint_list")
	if err != nil {
		return nil, err
	}
	return c.util.ParseBreakpoints(response.Raw), nil
}

// GetVariables 获取某个作用域的变量列表
// contextID为0表示局部作用域，1表示全局作用域
func (c *Client) GetVariables(ctx context.Context, contextID constants.ContextID) ([]*Variable, error) {
	response, err := c.router.Send(ctx, "context_get", "-c", strconv.Itoa(int(contextID)))
	if err != nil {
		return nil, err
	}
	return c.util.ParseProperties(response.Raw), nil
}

// EvaluateExpression 在当前栈帧中求值表达式
// 表达式base64编码后发送，返回第一个属性解码后的值，没有属性时返回空字符串
func (c *Client) EvaluateExpression(ctx context.Context, expression string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(expression))
	response, err := c.router.Send(ctx, "eval", "--", encoded)
	if err != nil {
		return "", err
	}
	properties := c.util.ParseProperties(response.Raw)
	if len(properties) == 0 {
		return "", nil
	}
	return properties[0].Value, nil
}

// GetStackTrace 获取栈帧列表，最内层在前
func (c *Client) GetStackTrace(ctx context.Context) ([]*StackFrame, error) {
	response, err := c.router.Send(ctx, "stack_get")
	if err != nil {
		return nil, err
	}
	return c.util.ParseStackFrames(response.Raw), nil
}
