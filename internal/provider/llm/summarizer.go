// Package llm 调用 OpenAI 兼容接口生成摘要
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iceymoss/go-feed/pkg/utils"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptySummary 模型返回了空内容, 调用方不能把它当成功
var ErrEmptySummary = errors.New("llm: empty summary")

type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxInputChars int
}

type Summarizer struct {
	model llms.Model
	cfg   Config
}

// NewSummarizer 初始化 OpenAI 兼容客户端 (OpenAI / DeepSeek / 本地 vLLM 都可以)
func NewSummarizer(cfg Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: missing api key")
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: init client: %w", err)
	}
	return NewWithModel(model, cfg), nil
}

// NewWithModel 使用已有的 llms.Model
func NewWithModel(model llms.Model, cfg Config) *Summarizer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 20000
	}
	return &Summarizer{model: model, cfg: cfg}
}

const promptTemplate = `You are a senior technology analyst. Read the article below and write a concise summary for a busy engineer.

Title: %s

Article:
%s

---
Requirements:
1. Three short paragraphs: the problem or context, the key details (name concrete technologies, numbers, actors), and why it matters.
2. Do not start with "This article". Do not invent facts that are not in the article.
3. Plain prose only. No markdown, no headings, no bullet lists.
`

// Summarize 返回清洗后的摘要; 空内容返回 ErrEmptySummary
func (s *Summarizer) Summarize(ctx context.Context, title, content string) (string, error) {
	content = utils.Truncate(strings.TrimSpace(content), s.cfg.MaxInputChars)
	prompt := fmt.Sprintf(promptTemplate, title, content)

	callOpts := []llms.CallOption{}
	if s.cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(s.cfg.Temperature))
	}
	if s.cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(s.cfg.MaxTokens))
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}

	summary := clean(resp)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}

// clean 去掉模型偶尔带上的 markdown 代码块标记
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], " ") {
			s = s[i+1:] // ```text 之类的语言标记
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
