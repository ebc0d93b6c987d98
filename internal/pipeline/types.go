package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/iceymoss/go-feed/pkg/db/objects"
)

// Dimension 一次 discovery 调用的查询范围: (topic, category) 或 (interest, website)
type Dimension struct {
	Topic    string
	Category string
	// Domains 限定搜索站点, 按需模式下就是 website 本身
	Domains []string
}

func (d Dimension) String() string {
	return fmt.Sprintf("%s/%s", d.Topic, d.Category)
}

// CrossProduct topics x categories, topic 在外层循环
func CrossProduct(topics, categories []string) []Dimension {
	dims := make([]Dimension, 0, len(topics)*len(categories))
	for _, t := range topics {
		for _, c := range categories {
			dims = append(dims, Dimension{Topic: t, Category: c})
		}
	}
	return dims
}

// SiteProduct interests x websites, 每个 website 同时作为搜索的域名过滤
func SiteProduct(interests, websites []string) []Dimension {
	dims := make([]Dimension, 0, len(interests)*len(websites))
	for _, i := range interests {
		for _, w := range websites {
			dims = append(dims, Dimension{Topic: i, Category: w, Domains: []string{w}})
		}
	}
	return dims
}

// SearchFilters discovery 的可选过滤条件
type SearchFilters struct {
	Domains []string
}

// SearchResult discovery 返回的一条轻量结果
type SearchResult struct {
	Title       string
	URL         string
	Description string
	// Content provider 顺带返回的正文, 可能只是一个片段
	Content     string
	Source      string
	PublishedAt *time.Time
}

// FullContent enrichment 的结果
type FullContent struct {
	Title string
	Text  string
}

// Discoverer 搜索服务
type Discoverer interface {
	Search(ctx context.Context, query string, filters SearchFilters) ([]SearchResult, error)
}

// DimensionSearcher 可选接口: 需要自己根据 dimension 构造查询词的 discoverer
// (例如组合了多个 provider) 实现它之后, 编排器不再使用 QueryBuilder
type DimensionSearcher interface {
	SearchDimension(ctx context.Context, d Dimension) ([]SearchResult, error)
}

// Enricher 根据 url 获取全文, 找不到时返回 error
type Enricher interface {
	GetFullContent(ctx context.Context, url string) (*FullContent, error)
}

// Summarizer 调用大模型生成摘要, 空结果必须返回 error
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
}

// StagingStore raw_articles
type StagingStore interface {
	UpsertBatch(ctx context.Context, articles []objects.RawArticle) error
	FindByURLs(ctx context.Context, urls []string) ([]objects.RawArticle, error)
	ListUnsummarized(ctx context.Context, topic, category string, limit int) ([]objects.RawArticle, error)
	UpdateContent(ctx context.Context, url, content string) error
}

// SummaryStore summarized_articles, Create 在 url 冲突时返回 repo.ErrDuplicate
type SummaryStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, article *objects.SummarizedArticle) error
}

// ContentFilter 屏蔽词检查
type ContentFilter interface {
	Blocked(text string) (bool, string)
}

// QueryBuilder 把 dimension 转成搜索词
type QueryBuilder func(d Dimension) string

// DefaultQuery topic + category
func DefaultQuery(d Dimension) string {
	return d.Topic + " " + d.Category
}
