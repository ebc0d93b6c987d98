// Package provider 组合多个外部服务
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iceymoss/go-feed/internal/pipeline"
	"github.com/iceymoss/go-feed/pkg/logger"

	"go.uber.org/zap"
)

// ErrNotFound 所有 enricher 都没拿到正文
var ErrNotFound = errors.New("full content not found")

// NamedEnricher 带名字便于日志定位
type NamedEnricher struct {
	Name     string
	Enricher pipeline.Enricher
}

// EnricherChain 按顺序尝试, 返回第一个非空正文
type EnricherChain []NamedEnricher

func (c EnricherChain) GetFullContent(ctx context.Context, url string) (*pipeline.FullContent, error) {
	for _, e := range c {
		full, err := e.Enricher.GetFullContent(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("enricher miss", zap.String("provider", e.Name), zap.String("url", url), zap.Error(err))
			continue
		}
		if full != nil && strings.TrimSpace(full.Text) != "" {
			return full, nil
		}
	}
	return nil, ErrNotFound
}

// NamedDiscoverer 带名字的 discovery provider
type NamedDiscoverer struct {
	Name       string
	Discoverer pipeline.Discoverer
	// Query 为 nil 时使用 pipeline 传入的查询词
	Query pipeline.QueryBuilder
}

// MultiDiscoverer 合并多个 provider 的结果, 按 url 去重, 保持 provider 顺序
// 只有全部失败时才返回错误, 交给重试层处理
type MultiDiscoverer struct {
	providers []NamedDiscoverer
}

func NewMultiDiscoverer(providers ...NamedDiscoverer) *MultiDiscoverer {
	return &MultiDiscoverer{providers: providers}
}

// SearchDimension 每个 provider 使用自己的查询词
func (m *MultiDiscoverer) SearchDimension(ctx context.Context, d pipeline.Dimension) ([]pipeline.SearchResult, error) {
	return m.search(ctx, func(p NamedDiscoverer) string {
		if p.Query != nil {
			return p.Query(d)
		}
		return pipeline.DefaultQuery(d)
	}, pipeline.SearchFilters{Domains: d.Domains})
}

func (m *MultiDiscoverer) Search(ctx context.Context, query string, filters pipeline.SearchFilters) ([]pipeline.SearchResult, error) {
	return m.search(ctx, func(NamedDiscoverer) string { return query }, filters)
}

func (m *MultiDiscoverer) search(ctx context.Context, queryFor func(NamedDiscoverer) string, filters pipeline.SearchFilters) ([]pipeline.SearchResult, error) {
	var (
		out  []pipeline.SearchResult
		errs []error
		seen = make(map[string]struct{})
	)
	for _, p := range m.providers {
		res, err := p.Discoverer.Search(ctx, queryFor(p), filters)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}
		for _, r := range res {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	if len(m.providers) > 0 && len(errs) == len(m.providers) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
