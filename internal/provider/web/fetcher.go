// Package web 直接抓取原网页作为 enrichment 的兜底
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/utils"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent 页面里没有可用的正文
var ErrNoContent = errors.New("web: no readable content")

const (
	maxBodyBytes = 5 << 20
	userAgent    = "go-feed/1.0 (+https://github.com/iceymoss/go-feed)"
	// readability 结果太短时多半只抽到了标题, 改用段落抽取
	minReadableChars = 200
)

type Fetcher struct {
	client   *http.Client
	maxChars int
}

func NewFetcher(client *http.Client, maxChars int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client, maxChars: maxChars}
}

// GetFullContent 抓取页面并抽取正文
func (f *Fetcher) GetFullContent(ctx context.Context, pageURL string) (*pipeline.FullContent, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("web: invalid url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("web: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web: request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web: %s returned %s", pageURL, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("web: read body: %w", err)
	}

	title, text := Extract(raw, u)
	if text == "" {
		return nil, ErrNoContent
	}
	return &pipeline.FullContent{Title: title, Text: utils.Truncate(text, f.maxChars)}, nil
}

// Extract 返回页面标题和正文; 依次尝试 readability, 段落抽取, 去标签
func Extract(raw []byte, pageURL *url.URL) (string, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", utils.CleanText(utils.StripTags(string(raw)), 0)
	}
	title := pageTitle(doc)

	if article, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			if text := strings.TrimSpace(buf.String()); len(text) >= minReadableChars {
				return title, text
			}
		}
	}

	doc.Find("head, script, style, noscript, nav, header, footer, aside, iframe, form").Remove()
	if text := paragraphs(doc); text != "" {
		return title, text
	}
	return title, utils.CleanText(utils.StripTags(doc.Text()), 0)
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func paragraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("h1, h2, h3, p, pre, li").Each(func(_ int, s *goquery.Selection) {
		if text := utils.CleanText(s.Text(), 0); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
