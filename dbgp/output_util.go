package dbgp

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	"github.com/fansqz/dbgp-client/constants"
)

// Response 引擎返回的一条已解析响应
// Attrs是顶层response标签上的所有属性，Raw保留原始XML给需要子元素的解析器使用
type Response struct {
	Attrs map[string]string
	Raw   string
}

// TransactionID 响应中携带的事务id，没有时返回0
func (r *Response) TransactionID() int {
	id, _ := strconv.Atoi(r.Attrs["transaction_id"])
	return id
}

var (
	attrRegexp         = regexp.MustCompile(`([\w:-]+)="([^"]*)"`)
	propertyRegexp     = regexp.MustCompile(`(?s)<property([^>]*[^/>])>(.*?)</property>`)
	propertySelfRegexp = regexp.MustCompile(`<property([^>]*)/>`)
	stackRegexp        = regexp.MustCompile(`<stack([^>]*)/>`)
	breakpointRegexp   = regexp.MustCompile(`<breakpoint([^>]*[^/])/?>`)
	messageRegexp      = regexp.MustCompile(`(?s)<[\w:]*message([^>]*)>(.*?)</[\w:]*message>`)
	errorRegexp        = regexp.MustCompile(`(?s)<error([^>]*)>(.*?)</error>`)
	cdataRegexp        = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// OutputUtil 处理引擎XML输出的工具
// 协议的属性语法是受限的（双引号、不嵌套），所以用定向的模式提取而不是完整XML解析。
// 所有解析方法都容忍空输入，匹配不到时返回空集合而不是报错。
type OutputUtil struct {
}

func NewOutputUtil() *OutputUtil {
	return &OutputUtil{}
}

// ParseResponse 通用响应解析
// <response command="run" transaction_id="1" status="break" reason="ok"/>
// 提取顶层标签上的所有属性
func (o *OutputUtil) ParseResponse(raw string) *Response {
	attrs := make(map[string]string)
	tag := o.topLevelTag(raw)
	for _, m := range attrRegexp.FindAllStringSubmatch(tag, -1) {
		attrs[m[1]] = m[2]
	}
	return &Response{Attrs: attrs, Raw: raw}
}

// ParseProperties 解析变量列表输出
//
//	<property name="count" fullname="$count" type="int" encoding="base64">
//	  MTA=
//	</property>
//
// 文本内容按base64解码，解码失败时回退到原始文本（部分引擎不会总是编码）
func (o *OutputUtil) ParseProperties(raw string) []*Variable {
	answer := make([]*Variable, 0, 10)
	for _, m := range propertyRegexp.FindAllStringSubmatch(raw, -1) {
		attrs := o.parseAttrs(m[1])
		answer = append(answer, &Variable{
			Name:     attrs["name"],
			FullName: attrs["fullname"],
			Type:     attrs["type"],
			Value:    o.DecodePropertyText(m[2]),
		})
	}
	for _, m := range propertySelfRegexp.FindAllStringSubmatch(raw, -1) {
		attrs := o.parseAttrs(m[1])
		answer = append(answer, &Variable{
			Name:     attrs["name"],
			FullName: attrs["fullname"],
			Type:     attrs["type"],
		})
	}
	return answer
}

// ParseStackFrames 解析栈帧输出
// <stack level="0" type="file" filename="file:///scripts/main.ahk" lineno="12" where="MyFunc"/>
// level和lineno转成整数，其余字段保留字符串
func (o *OutputUtil) ParseStackFrames(raw string) []*StackFrame {
	answer := make([]*StackFrame, 0, 5)
	for _, m := range stackRegexp.FindAllStringSubmatch(raw, -1) {
		attrs := o.parseAttrs(m[1])
		level, _ := strconv.Atoi(attrs["level"])
		line, _ := strconv.Atoi(attrs["lineno"])
		answer = append(answer, &StackFrame{
			Level: level,
			Type:  attrs["type"],
			File:  StripFileScheme(attrs["filename"]),
			Line:  line,
			Where: attrs["where"],
		})
	}
	return answer
}

// ParseBreakpoints 解析断点列表输出
// <breakpoint id="77" type="line" filename="file://C:/scripts/a.ahk" lineno="10" state="enabled"/>
func (o *OutputUtil) ParseBreakpoints(raw string) []*Breakpoint {
	answer := make([]*Breakpoint, 0, 5)
	for _, m := range breakpointRegexp.FindAllStringSubmatch(raw, -1) {
		attrs := o.parseAttrs(m[1])
		line, _ := strconv.Atoi(attrs["lineno"])
		answer = append(answer, &Breakpoint{
			ID:        attrs["id"],
			File:      StripFileScheme(attrs["filename"]),
			Line:      line,
			Condition: attrs["expression"],
			Enabled:   attrs["state"] != "disabled",
		})
	}
	return answer
}

// ParseErrorNotification 从异步错误通知中提取错误信息
// 带exception属性的归类为异常，其余归类为运行时错误
// 兼容response内嵌error元素和notify两种形式：
//
//	<response status="break" reason="error">
//	  <error code="2"><message><![CDATA[Division by zero]]></message></error>
//	</response>
func (o *OutputUtil) ParseErrorNotification(raw string) (category constants.ErrorCategory, message, file string, line int) {
	category = constants.RuntimeError
	if m := errorRegexp.FindStringSubmatch(raw); m != nil {
		attrs := o.parseAttrs(m[1])
		if attrs["exception"] != "" {
			category = constants.ExceptionError
		}
		message = o.DecodePropertyText(m[2])
	}
	if m := messageRegexp.FindStringSubmatch(raw); m != nil {
		attrs := o.parseAttrs(m[1])
		if attrs["filename"] != "" {
			file = StripFileScheme(attrs["filename"])
		}
		if attrs["lineno"] != "" {
			line, _ = strconv.Atoi(attrs["lineno"])
		}
		if text := strings.TrimSpace(o.stripCDATA(m[2])); text != "" {
			message = text
		}
	}
	return category, message, file, line
}

// DecodePropertyText base64解码属性文本
// 解码失败时返回原始文本
func (o *OutputUtil) DecodePropertyText(text string) string {
	text = strings.TrimSpace(o.stripCDATA(text))
	if text == "" {
		return ""
	}
	if decoded, err := base64.StdEncoding.DecodeString(text); err == nil {
		return string(decoded)
	}
	return text
}

func (o *OutputUtil) parseAttrs(attrText string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRegexp.FindAllStringSubmatch(attrText, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func (o *OutputUtil) stripCDATA(text string) string {
	if m := cdataRegexp.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// topLevelTag 取出第一个元素的开始标签，跳过<?xml声明
func (o *OutputUtil) topLevelTag(raw string) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '<' || i+1 >= len(raw) {
			continue
		}
		c := raw[i+1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			if end := strings.IndexByte(raw[i:], '>'); end >= 0 {
				return raw[i : i+end]
			}
			return raw[i:]
		}
	}
	return ""
}

// StripFileScheme 去除file://前缀，用于展示文件路径
func StripFileScheme(file string) string {
	file = strings.TrimPrefix(file, "file://")
	// Windows路径形如 /C:/scripts/a.ahk，去掉开头多余的斜杠
	if len(file) > 2 && file[0] == '/' && file[2] == ':' {
		file = file[1:]
	}
	return file
}

// ToFileURI 把文件路径转成file:// URI，反斜杠统一成斜杠
func ToFileURI(path string) string {
	return "file://" + strings.ReplaceAll(path, "\\", "/")
}
