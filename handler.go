package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fansqz/dbgp-client/constants"
	"github.com/fansqz/dbgp-client/dbgp"
	"github.com/fansqz/dbgp-client/protocol"
	"github.com/fansqz/dbgp-client/utils"
	"github.com/fansqz/dbgp-client/utils/gosync"
	"github.com/sirupsen/logrus"
)

// SessionHandler 控制请求的分发器
// 持有进程内唯一的调试会话，把工具层发来的JSON请求转成会话操作。
// 会话产生的异步事件推送给当前的控制连接。
type SessionHandler struct {
	session *dbgp.Session

	mutex     sync.Mutex
	eventConn net.Conn
}

func NewSessionHandler(debugPort int) *SessionHandler {
	h := &SessionHandler{}
	h.session = dbgp.NewSession(debugPort, h.pushEvent)
	return h
}

func (h *SessionHandler) handle(conn net.Conn, req []byte) {
	ctx := context.Background()
	r := &protocol.BaseRequest{}
	// 判断请求类型
	if err := json.Unmarshal(req, r); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		return
	}
	switch r.Type {
	case constants.StartListener:
		h.handleStartListener(conn, req)
	case constants.StopListener:
		h.sendResult(conn, r.Sequence, nil, h.session.Close())
	case constants.GetStatus:
		h.handleGetStatus(ctx, conn, r.Sequence)
	case constants.Run:
		status, err := h.session.Client().Run(ctx)
		h.sendResult(conn, r.Sequence, map[string]string{"status": status}, err)
	case constants.Step:
		h.handleStep(ctx, conn, req)
	case constants.Stop:
		status, err := h.session.Client().Stop(ctx)
		h.sendResult(conn, r.Sequence, map[string]string{"status": status}, err)
	case constants.CaptureError:
		h.handleCaptureError(ctx, conn, req)
	case constants.WaitForError:
		h.handleWaitForError(ctx, conn, req)
	case constants.ListErrors:
		h.sendResult(conn, r.Sequence, h.session.Errors().GetQueuedErrors(), nil)
	case constants.ClearErrors:
		h.session.Errors().ClearErrorQueue()
		h.sendResult(conn, r.Sequence, nil, nil)
	case constants.GetSourceContext:
		h.handleSourceContext(conn, req)
	case constants.SetBreakpoint:
		h.handleSetBreakpoint(ctx, conn, req)
	case constants.RemoveBreakpoint:
		h.handleRemoveBreakpoint(ctx, conn, req)
	case constants.ListBreakpoints:
		breakpoints, err := h.session.Client().ListBreakpoints(ctx)
		h.sendResult(conn, r.Sequence, breakpoints, err)
	case constants.GetVariables:
		h.handleGetVariables(ctx, conn, req)
	case constants.Evaluate:
		h.handleEvaluate(ctx, conn, req)
	case constants.StackTrace:
		stack, err := h.session.Client().GetStackTrace(ctx)
		h.sendResult(conn, r.Sequence, stack, err)
	case constants.ApplyFix:
		h.handleApplyFix(conn, req)
	default:
		h.sendResponse(conn, r.Sequence, false, "request type not support", nil)
	}
}

// sendResult 统一的结果返回，err非空时返回失败和错误描述
func (h *SessionHandler) sendResult(conn net.Conn, sequence uint, data interface{}, err error) {
	if err != nil {
		h.sendResponse(conn, sequence, false, err.Error(), nil)
		return
	}
	h.sendResponse(conn, sequence, true, "", data)
}

func (h *SessionHandler) sendResponse(conn net.Conn, sequence uint, success bool, message string, body interface{}) {
	response := &protocol.Response{
		Sequence: sequence,
		Success:  success,
		Message:  message,
		Data:     body,
	}
	answer, err := json.Marshal(response)
	if err != nil {
		logrus.Warnf("marshal response fail, err = %v", err)
		return
	}
	conn.Write(append(answer, '\n'))
}

func (h *SessionHandler) handleStartListener(conn net.Conn, req []byte) {
	startReq := protocol.StartListenerRequest{}
	if err := json.Unmarshal(req, &startReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, startReq.Sequence, false, err.Error(), nil)
		return
	}
	// 请求里带了端口就按请求的端口监听
	h.session.SetPort(startReq.Port)
	var port int
	var err error
	if h.session.Status() == utils.Disconnected {
		port, err = h.session.Listen()
	} else {
		// 已经在监听或已接入，重置会话后重新监听
		err = h.session.Reset()
		port = h.session.Port()
	}
	h.sendResult(conn, startReq.Sequence, map[string]int{"port": port}, err)
}

func (h *SessionHandler) handleGetStatus(ctx context.Context, conn net.Conn, sequence uint) {
	data := map[string]string{"connection": h.session.Status()}
	if h.session.Status() == utils.Connected {
		// 引擎在线时顺带取一次引擎状态
		if status, err := h.session.Client().GetStatus(ctx); err == nil {
			data["engine"] = status
		}
	}
	h.sendResult(conn, sequence, data, nil)
}

func (h *SessionHandler) handleStep(ctx context.Context, conn net.Conn, req []byte) {
	stepReq := protocol.StepRequest{}
	if err := json.Unmarshal(req, &stepReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, stepReq.Sequence, false, err.Error(), nil)
		return
	}
	var status string
	var err error
	if stepReq.StepType == constants.StepIn {
		status, err = h.session.Client().StepInto(ctx)
	} else if stepReq.StepType == constants.StepOver {
		status, err = h.session.Client().StepOver(ctx)
	} else if stepReq.StepType == constants.StepOut {
		status, err = h.session.Client().StepOut(ctx)
	} else {
		err = fmt.Errorf("step type not support")
	}
	h.sendResult(conn, stepReq.Sequence, map[string]string{"status": status}, err)
}

func (h *SessionHandler) handleCaptureError(ctx context.Context, conn net.Conn, req []byte) {
	captureReq := protocol.CaptureErrorRequest{}
	if err := json.Unmarshal(req, &captureReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, captureReq.Sequence, false, err.Error(), nil)
		return
	}
	errType := captureReq.ErrorType
	if errType == "" {
		errType = constants.RuntimeError
	}
	event := h.session.Errors().CaptureErrorContext(
		ctx, captureReq.File, captureReq.Line, errType, captureReq.Message)
	h.sendResult(conn, captureReq.Sequence, event, nil)
}

// handleWaitForError 等待是阻塞的，放到协程里，避免卡住控制连接上的其他请求
func (h *SessionHandler) handleWaitForError(ctx context.Context, conn net.Conn, req []byte) {
	waitReq := protocol.WaitForErrorRequest{}
	if err := json.Unmarshal(req, &waitReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, waitReq.Sequence, false, err.Error(), nil)
		return
	}
	gosync.Go(ctx, func(ctx context.Context) {
		timeout := time.Duration(waitReq.TimeoutMs) * time.Millisecond
		event := h.session.Errors().WaitForError(ctx, timeout)
		h.sendResult(conn, waitReq.Sequence, event, nil)
	})
}

func (h *SessionHandler) handleSourceContext(conn net.Conn, req []byte) {
	sourceReq := protocol.SourceContextRequest{}
	if err := json.Unmarshal(req, &sourceReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, sourceReq.Sequence, false, err.Error(), nil)
		return
	}
	radius := sourceReq.Radius
	if radius <= 0 {
		radius = dbgp.DefaultContextRadius
	}
	h.sendResult(conn, sourceReq.Sequence, utils.GetSourceContext(sourceReq.File, sourceReq.Line, radius), nil)
}

func (h *SessionHandler) handleSetBreakpoint(ctx context.Context, conn net.Conn, req []byte) {
	bpReq := protocol.SetBreakpointRequest{}
	if err := json.Unmarshal(req, &bpReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, bpReq.Sequence, false, err.Error(), nil)
		return
	}
	id, err := h.session.Client().SetBreakpoint(ctx, bpReq.File, bpReq.Line, bpReq.Condition)
	h.sendResult(conn, bpReq.Sequence, map[string]string{"id": id}, err)
}

func (h *SessionHandler) handleRemoveBreakpoint(ctx context.Context, conn net.Conn, req []byte) {
	bpReq := protocol.RemoveBreakpointRequest{}
	if err := json.Unmarshal(req, &bpReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, bpReq.Sequence, false, err.Error(), nil)
		return
	}
	h.sendResult(conn, bpReq.Sequence, nil, h.session.Client().RemoveBreakpoint(ctx, bpReq.ID))
}

func (h *SessionHandler) handleGetVariables(ctx context.Context, conn net.Conn, req []byte) {
	varReq := protocol.GetVariablesRequest{}
	if err := json.Unmarshal(req, &varReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, varReq.Sequence, false, err.Error(), nil)
		return
	}
	variables, err := h.session.Client().GetVariables(ctx, varReq.Context)
	h.sendResult(conn, varReq.Sequence, variables, err)
}

func (h *SessionHandler) handleEvaluate(ctx context.Context, conn net.Conn, req []byte) {
	evalReq := protocol.EvaluateRequest{}
	if err := json.Unmarshal(req, &evalReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, evalReq.Sequence, false, err.Error(), nil)
		return
	}
	value, err := h.session.Client().EvaluateExpression(ctx, evalReq.Expression)
	h.sendResult(conn, evalReq.Sequence, map[string]string{"value": value}, err)
}

func (h *SessionHandler) handleApplyFix(conn net.Conn, req []byte) {
	fixReq := protocol.ApplyFixRequest{}
	if err := json.Unmarshal(req, &fixReq); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		h.sendResponse(conn, fixReq.Sequence, false, err.Error(), nil)
		return
	}
	err := utils.ApplyFix(fixReq.File, fixReq.Line, fixReq.Original, fixReq.Replacement)
	h.sendResult(conn, fixReq.Sequence, nil, err)
}

// setEventConn 记录当前接收异步事件的控制连接
func (h *SessionHandler) setEventConn(conn net.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.eventConn = conn
}

func (h *SessionHandler) clearEventConn(conn net.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.eventConn == conn {
		h.eventConn = nil
	}
}

// pushEvent 把会话的生命周期事件推给控制连接
func (h *SessionHandler) pushEvent(eventType constants.DebugEventType, payload interface{}) {
	h.mutex.Lock()
	conn := h.eventConn
	h.mutex.Unlock()
	if conn == nil {
		return
	}

	var event interface{}
	switch eventType {
	case constants.ConnectedEvent:
		event = protocol.NewConnectedEvent(h.session.Port())
	case constants.DisconnectedEvent:
		event = protocol.NewDisconnectedEvent()
	case constants.InitEvent:
		attrs, _ := payload.(map[string]string)
		event = protocol.NewInitEvent(attrs)
	case constants.ErrorEvent:
		event = protocol.NewErrorCapturedEvent()
	default:
		return
	}
	answer, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("marshal event fail, err = %v", err)
		return
	}
	conn.Write(append(answer, '\n'))
}
