package sensitive

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/importcjj/sensitive"
)

// Word 屏蔽词过滤器, 匹配大小写不敏感, 忽略空白和常见噪音符号
type Word struct {
	Filter *sensitive.Filter
	size   int
}

// NewWord 用给定词表构建过滤器, 空词表返回一个永远放行的过滤器
func NewWord(words []string) *Word {
	w := &Word{Filter: sensitive.New()}
	w.Add(words...)
	return w
}

// NewWordFromFile 从词库文件加载, 每行一个词
func NewWordFromFile(path string) (*Word, error) {
	w := &Word{Filter: sensitive.New()}
	if err := w.Filter.LoadWordDict(path); err != nil {
		return nil, fmt.Errorf("load word dict %s: %w", path, err)
	}
	w.size = -1
	return w, nil
}

// Add 追加屏蔽词
func (w *Word) Add(words ...string) {
	for _, word := range words {
		word = normalize(word)
		if word == "" {
			continue
		}
		w.Filter.AddWord(word)
		if w.size >= 0 {
			w.size++
		}
	}
}

// Empty 没有任何屏蔽词
func (w *Word) Empty() bool {
	return w == nil || w.size == 0
}

// Blocked 文本命中屏蔽词时返回 true 以及命中的词
func (w *Word) Blocked(text string) (bool, string) {
	if w.Empty() {
		return false, ""
	}
	return w.Filter.FindIn(strings.ToLower(text))
}

// Validate 兼容旧接口: 通过返回 true
func (w *Word) Validate(content string) (bool, string) {
	blocked, word := w.Blocked(content)
	return !blocked, word
}

func (w *Word) Replace(content string, replChar rune) string {
	if w.Empty() {
		return content
	}
	return w.Filter.Replace(strings.ToLower(content), replChar)
}

// normalize 词表里的空白会被过滤器当作噪音去掉, 这里提前去掉保证能匹配
func normalize(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, word)
}
