// Package exa 封装 Exa 搜索 API, 同时提供 discovery 和 enrichment 两个能力
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/utils"
)

// ErrNotFound contents 接口没有返回正文
var ErrNotFound = errors.New("exa: content not found")

const (
	defaultBaseURL       = "https://api.exa.ai"
	defaultQueryTemplate = "new niche prominent interesting %s %s analysis"
)

type Config struct {
	APIKey        string
	BaseURL       string
	SearchType    string
	NumResults    int
	MaxCharacters int
	QueryTemplate string
	Livecrawl     string
	Timeout       time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient httpClient 为 nil 时按 cfg.Timeout 创建
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.QueryTemplate == "" {
		cfg.QueryTemplate = defaultQueryTemplate
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 10
	}
	if cfg.MaxCharacters <= 0 {
		cfg.MaxCharacters = 5000
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type textOptions struct {
	MaxCharacters   int  `json:"maxCharacters"`
	IncludeHTMLTags bool `json:"includeHtmlTags"`
}

type searchRequest struct {
	Query          string   `json:"query"`
	Type           string   `json:"type,omitempty"`
	NumResults     int      `json:"numResults"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
	Contents       struct {
		Text textOptions `json:"text"`
	} `json:"contents"`
	Livecrawl string `json:"livecrawl,omitempty"`
}

type contentsRequest struct {
	URLs      []string    `json:"urls"`
	Text      textOptions `json:"text"`
	Livecrawl string      `json:"livecrawl,omitempty"`
}

type result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate"`
	Author        string `json:"author"`
	Text          string `json:"text"`
}

type response struct {
	Results []result `json:"results"`
}

// Query 用模板把 topic/category 拼成搜索词
func (c *Client) Query(d pipeline.Dimension) string {
	return fmt.Sprintf(c.cfg.QueryTemplate, d.Topic, d.Category)
}

// Search 没有结果时返回空列表而不是错误; 网络/HTTP 错误原样返回给重试层
func (c *Client) Search(ctx context.Context, query string, filters pipeline.SearchFilters) ([]pipeline.SearchResult, error) {
	req := searchRequest{
		Query:          query,
		Type:           c.cfg.SearchType,
		NumResults:     c.cfg.NumResults,
		IncludeDomains: filters.Domains,
		Livecrawl:      c.cfg.Livecrawl,
	}
	req.Contents.Text = textOptions{MaxCharacters: c.cfg.MaxCharacters}

	var resp response
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return nil, err
	}

	out := make([]pipeline.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		item, ok := normalize(r)
		if !ok {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// GetFullContent 没有正文时返回 ErrNotFound
func (c *Client) GetFullContent(ctx context.Context, pageURL string) (*pipeline.FullContent, error) {
	req := contentsRequest{
		URLs:      []string{pageURL},
		Text:      textOptions{MaxCharacters: c.cfg.MaxCharacters},
		Livecrawl: c.cfg.Livecrawl,
	}

	var resp response
	if err := c.post(ctx, "/contents", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 || strings.TrimSpace(resp.Results[0].Text) == "" {
		return nil, ErrNotFound
	}
	r := resp.Results[0]
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = utils.CleanText(r.Text, 200)
	}
	return &pipeline.FullContent{Title: title, Text: strings.TrimSpace(r.Text)}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("exa: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("exa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("exa: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("exa: %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("exa: decode %s response: %w", path, err)
	}
	return nil
}

// normalize url 不合法的结果直接丢弃
func normalize(r result) (pipeline.SearchResult, bool) {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || u.Host == "" {
		return pipeline.SearchResult{}, false
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = utils.CleanText(r.Text, 200)
	}
	if title == "" {
		title = "Untitled"
	}

	item := pipeline.SearchResult{
		Title:       title,
		URL:         u.String(),
		Description: utils.CleanText(r.Text, 500),
		Content:     strings.TrimSpace(r.Text),
		Source:      u.Hostname(),
	}
	if t, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
		item.PublishedAt = &t
	}
	return item, true
}
