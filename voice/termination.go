package voice

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// NormalizeUtterance 去掉 ASCII 标点、首尾空白并转为小写
func NormalizeUtterance(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return -1
		}
		return r
	}, text)
	return strings.ToLower(strings.TrimSpace(stripped))
}

// TerminationDetector 判断话语是否以告别词结尾（整词匹配，锚定在末尾）
type TerminationDetector struct {
	pattern *regexp.Regexp
	phrases []string
}

// wordBoundary 要求告别词前是开头或非单词字符。
// Go 的 \b 只识别 ASCII 单词字符，"olébye" 会在 é 与 b 之间误判出边界，
// 这里按 Unicode 字母、数字与下划线判断；末尾直接锚定 $。
const wordBoundary = `(?:^|[^\p{L}\p{N}_])`

// NewTerminationDetector 用告别词集合构造检测器，例如 goodbye、bye
// 会编译为 (?:^|[^\p{L}\p{N}_])(goodbye|bye)$
func NewTerminationDetector(phrases []string) (*TerminationDetector, error) {
	quoted := make([]string, 0, len(phrases))
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = NormalizeUtterance(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	if len(quoted) == 0 {
		return nil, fmt.Errorf("at least one termination phrase is required")
	}

	pattern, err := regexp.Compile(wordBoundary + `(` + strings.Join(quoted, "|") + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile termination pattern: %w", err)
	}
	return &TerminationDetector{pattern: pattern, phrases: kept}, nil
}

// Match 对已规范化的话语做匹配
func (d *TerminationDetector) Match(normalized string) bool {
	return d.pattern.MatchString(normalized)
}

// ShouldEnd 规范化后再匹配
func (d *TerminationDetector) ShouldEnd(text string) bool {
	return d.Match(NormalizeUtterance(text))
}

// Phrases 返回生效的告别词
func (d *TerminationDetector) Phrases() []string {
	return append([]string(nil), d.phrases...)
}

// Pattern 返回编译后的正则表达式
func (d *TerminationDetector) Pattern() string {
	return d.pattern.String()
}
