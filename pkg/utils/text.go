package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	spaces = regexp.MustCompile(`\s+`)
	strict = bluemonday.StrictPolicy()
)

// CleanText 合并空白并截断到 maxRunes 个字符, 截断时追加 "..."
func CleanText(text string, maxRunes int) string {
	cleaned := strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		return string([]rune(cleaned)[:maxRunes]) + "..."
	}
	return cleaned
}

// Truncate 按字符截断, 不追加省略号
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return string([]rune(text)[:maxRunes])
}

// StripTags 去掉所有 HTML 标签, 纯文本原样返回
func StripTags(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	return html.UnescapeString(strict.Sanitize(raw))
}
