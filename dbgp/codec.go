package dbgp

import (
	"bytes"
	"strconv"
	"strings"
)

// FrameKind 解码出的帧的类型
type FrameKind string

const (
	// FrameInit 引擎接入时发送的握手帧
	FrameInit FrameKind = "init"
	// FrameMessage 普通的XML响应帧
	FrameMessage FrameKind = "message"
)

// Frame 一个完整的协议帧
type Frame struct {
	Kind    FrameKind
	Payload string
}

// EncodeCommand 把命令编码成协议的文本格式
// 格式为 "<verb> <args...> -i <txID>\x00"，出站方向不需要长度前缀
func EncodeCommand(verb string, args []string, txID int) []byte {
	var sb strings.Builder
	sb.WriteString(verb)
	for _, arg := range args {
		sb.WriteByte(' ')
		sb.WriteString(arg)
	}
	sb.WriteString(" -i ")
	sb.WriteString(strconv.Itoa(txID))
	sb.WriteByte(0)
	return []byte(sb.String())
}

// StreamDecoder 把socket读到的字节流切分成完整的协议帧
// 消息可能被拆分在多次读取中，只有缓冲区中出现完整的NUL结尾帧才会产出
type StreamDecoder struct {
	buffer []byte
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// Write 追加新读到的字节，返回当前能解出的所有完整帧
// 纯数字的帧是长度头，直接丢弃；包含init标记的帧是握手帧
func (d *StreamDecoder) Write(data []byte) []Frame {
	d.buffer = append(d.buffer, data...)
	var frames []Frame
	for {
		idx := bytes.IndexByte(d.buffer, 0)
		if idx < 0 {
			// 帧还不完整，等待更多数据
			break
		}
		message := string(d.buffer[:idx])
		d.buffer = d.buffer[idx+1:]
		if message == "" || isDigits(message) {
			continue
		}
		if strings.Contains(message, "<init") {
			frames = append(frames, Frame{Kind: FrameInit, Payload: message})
		} else {
			frames = append(frames, Frame{Kind: FrameMessage, Payload: message})
		}
	}
	return frames
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
