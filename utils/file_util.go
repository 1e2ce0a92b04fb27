package utils

import (
	"fmt"
	"os"
	"strings"

	e "github.com/fansqz/dbgp-client/error"
)

// SourceLine 源码上下文中的一行
type SourceLine struct {
	Number int    `json:"number"` // 行号，从1开始
	Text   string `json:"text"`
	// IsFaultLine 是否是出错行
	IsFaultLine bool `json:"isFaultLine"`
}

// ReadFileLines 读取文件并按行切分，同时兼容\n和\r\n行尾
func ReadFileLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(content, "\n"), nil
}

// GetSourceContext 获取file中line行附近radius行的源码
// 文件不存在或不可读时，返回一个占位行而不是失败
func GetSourceContext(file string, line int, radius int) []SourceLine {
	lines, err := ReadFileLines(file)
	if err != nil {
		return []SourceLine{
			{Number: line, Text: fmt.Sprintf("<source unavailable: %s>", file), IsFaultLine: true},
		}
	}
	start := line - radius
	if start < 1 {
		start = 1
	}
	end := line + radius
	if end > len(lines) {
		end = len(lines)
	}
	answer := make([]SourceLine, 0, 2*radius+1)
	for n := start; n <= end; n++ {
		answer = append(answer, SourceLine{
			Number:      n,
			Text:        lines[n-1],
			IsFaultLine: n == line,
		})
	}
	return answer
}

// ApplyFix 重写file中line行的内容
// 重写前校验该行当前内容和original完全一致，防止修复落在已经变化的代码上。
// 重写时保留原行的缩进。
func ApplyFix(file string, line int, original string, replacement string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	content := string(data)
	// 保留原有的换行风格
	newline := "\n"
	if strings.Contains(content, "\r\n") {
		newline = "\r\n"
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if line < 1 || line > len(lines) {
		return fmt.Errorf("%w: line %d, file has %d lines", e.ErrLineOutOfRange, line, len(lines))
	}
	current := lines[line-1]
	indent := current[:len(current)-len(strings.TrimLeft(current, " \t"))]
	if strings.TrimSpace(current) != strings.TrimSpace(original) {
		return fmt.Errorf("%w: expected %q, found %q", e.ErrFixMismatch, original, current)
	}
	lines[line-1] = indent + strings.TrimSpace(replacement)
	return os.WriteFile(file, []byte(strings.Join(lines, newline)), 0644)
}
