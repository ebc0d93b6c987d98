// Package rss 把一组 RSS/Atom 源当作 discovery provider
package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/logger"
	"github.com/iceymoss/go-feed/pkg/utils"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Discoverer 抓取所有源, 返回标题或描述里包含查询词的条目
type Discoverer struct {
	feeds  []string
	parser *gofeed.Parser
	// MaxAge 只保留最近发布的条目, 0 表示不限制
	MaxAge time.Duration
	now    func() time.Time
}

func NewDiscoverer(feeds []string, client *http.Client) *Discoverer {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	return &Discoverer{feeds: feeds, parser: fp, now: time.Now}
}

// Query rss 没有搜索能力, 直接用 topic 做关键词
func (d *Discoverer) Query(dim pipeline.Dimension) string {
	return dim.Topic
}

// Search 单个源失败只记日志; 所有源都失败才返回错误
func (d *Discoverer) Search(ctx context.Context, query string, filters pipeline.SearchFilters) ([]pipeline.SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	var (
		out    []pipeline.SearchResult
		errs   []error
		seen   = make(map[string]struct{})
		cutoff time.Time
	)
	if d.MaxAge > 0 {
		cutoff = d.now().Add(-d.MaxAge)
	}

	for _, feedURL := range d.feeds {
		feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("⚠️ [RSS] parse feed failed", zap.String("feed", feedURL), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", feedURL, err))
			continue
		}

		for _, item := range feed.Items {
			if item == nil || item.Link == "" {
				continue
			}
			if _, ok := seen[item.Link]; ok {
				continue
			}
			if !cutoff.IsZero() && item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
				continue
			}
			u, err := url.Parse(item.Link)
			if err != nil || u.Host == "" || !domainAllowed(u.Hostname(), filters.Domains) {
				continue
			}

			description := utils.CleanText(utils.StripTags(item.Description), 500)
			if !matches(terms, item.Title+" "+description) {
				continue
			}
			seen[item.Link] = struct{}{}
			out = append(out, pipeline.SearchResult{
				Title:       strings.TrimSpace(item.Title),
				URL:         item.Link,
				Description: description,
				Content:     strings.TrimSpace(utils.StripTags(item.Content)),
				Source:      u.Hostname(),
				PublishedAt: item.PublishedParsed,
			})
		}
	}

	if len(errs) > 0 && len(errs) == len(d.feeds) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// matches 所有词都出现才算命中, 没有词时全部命中
func matches(terms []string, text string) bool {
	text = strings.ToLower(text)
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func domainAllowed(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, d := range domains {
		d, _, _ = strings.Cut(d, "/")
		d = strings.TrimPrefix(strings.ToLower(d), "www.")
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
