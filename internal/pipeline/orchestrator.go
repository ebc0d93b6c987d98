package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iceymoss/go-feed/internal/repo"
	"github.com/iceymoss/go-feed/pkg/db/objects"
	"github.com/iceymoss/go-feed/pkg/logger"
	"github.com/iceymoss/go-feed/pkg/utils"

	"go.uber.org/zap"
)

// Deps 编排器依赖, 全部通过构造函数注入
type Deps struct {
	Discoverer Discoverer
	// Enricher 可以为 nil, 此时只使用 discovery 返回的正文
	Enricher   Enricher
	Summarizer Summarizer
	Staging    StagingStore
	Summaries  SummaryStore
	// Filter 可以为 nil
	Filter ContentFilter
	Query  QueryBuilder
	// Sleep 重试退避用, 为 nil 时真实等待
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator 按 dimension 顺序执行 discovery -> staging -> enrichment -> summarization -> 持久化
// 单个 run 内串行执行, 多个 run 之间的并发安全依赖 summary 表的 url 唯一约束
type Orchestrator struct {
	deps Deps
	log  *zap.Logger
}

func New(deps Deps) *Orchestrator {
	if deps.Query == nil {
		deps.Query = DefaultQuery
	}
	return &Orchestrator{
		deps: deps,
		log:  logger.With(zap.String("component", "pipeline")),
	}
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeCancelled
)

// RunBatch 依次处理 dims, 永远返回 report; 单篇文章或单个 dimension 的失败只记录日志
func (o *Orchestrator) RunBatch(ctx context.Context, dims []Dimension, opts Options) *Report {
	opts = opts.withDefaults()
	throttle := NewThrottle(opts.InterStageDelay)
	report := &Report{Articles: []objects.SummarizedArticle{}}

	start := time.Now()
	o.log.Info("🚀 run started",
		zap.Int("dimensions", len(dims)),
		zap.Int("max_new_summaries", opts.MaxNewSummaries))

	for _, dim := range dims {
		if report.quotaHit(opts.MaxNewSummaries) {
			break
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.DimensionsProcessed++
		if stop := o.runDimension(ctx, dim, opts, throttle, report); stop {
			break
		}
	}
	report.QuotaReached = report.quotaHit(opts.MaxNewSummaries)

	runDuration.Observe(time.Since(start).Seconds())
	o.log.Info("✅ run finished",
		zap.Int("dimensions_processed", report.DimensionsProcessed),
		zap.Int("created", report.NewSummaries),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Bool("quota_reached", report.QuotaReached),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("elapsed", time.Since(start)))
	return report
}

// runDimension 返回 true 表示整个 run 需要停止 (配额用完或被取消)
func (o *Orchestrator) runDimension(ctx context.Context, dim Dimension, opts Options, throttle *Throttle, report *Report) bool {
	log := o.log.With(zap.Stringer("dimension", dim))

	if utf8.RuneCountInString(dim.Topic) > objects.MaxDimensionLength || utf8.RuneCountInString(dim.Category) > objects.MaxDimensionLength {
		log.Error("topic or category too long, skip dimension", zap.Int("max", objects.MaxDimensionLength))
		report.Failed++
		return false
	}

	results, err := o.discover(ctx, dim, opts, throttle)
	if err != nil {
		if ctx.Err() != nil {
			report.Cancelled = true
			return true
		}
		// discovery 失败等同于这个 dimension 没有结果, 历史积压仍然可以处理
		discoveryFailures.Inc()
		log.Warn("discovery failed, continuing with zero results", zap.Error(err))
		results = nil
	}
	discoveredTotal.WithLabelValues(dim.Topic).Add(float64(len(results)))

	candidates, err := o.stage(ctx, dim, results, opts)
	if err != nil {
		if ctx.Err() != nil {
			report.Cancelled = true
			return true
		}
		log.Error("staging failed, skip dimension", zap.Error(err))
		report.Failed++
		return false
	}
	log.Debug("candidates selected", zap.Int("discovered", len(results)), zap.Int("candidates", len(candidates)))

	for i := range candidates {
		if report.quotaHit(opts.MaxNewSummaries) {
			log.Info("quota reached, stopping run", zap.Int("created", report.NewSummaries))
			return true
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			return true
		}

		article, res := o.process(ctx, dim, &candidates[i], opts, throttle)
		switch res {
		case outcomeCreated:
			report.NewSummaries++
			report.Articles = append(report.Articles, *article)
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		case outcomeCancelled:
			report.Cancelled = true
			return true
		}
	}
	return false
}

func (o *Orchestrator) discover(ctx context.Context, dim Dimension, opts Options, throttle *Throttle) ([]SearchResult, error) {
	query := o.deps.Query(dim)
	filters := SearchFilters{Domains: dim.Domains}
	bo := Backoff{Attempts: opts.RetryAttempts, Base: opts.RetryBaseDelay, Sleep: o.deps.Sleep}

	return Retry(ctx, bo, func(ctx context.Context, attempt int) ([]SearchResult, error) {
		if err := throttle.Wait(ctx, ProviderDiscovery); err != nil {
			return nil, err
		}
		var (
			results []SearchResult
			err     error
		)
		if ds, ok := o.deps.Discoverer.(DimensionSearcher); ok {
			results, err = ds.SearchDimension(ctx, dim)
		} else {
			results, err = o.deps.Discoverer.Search(ctx, query, filters)
		}
		if err != nil {
			o.log.Warn("discovery attempt failed",
				zap.Stringer("dimension", dim),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}
		return results, nil
	})
}

// stage upsert 本次结果, 返回候选: 本次发现的 (按发现顺序) + 同维度的历史积压
func (o *Orchestrator) stage(ctx context.Context, dim Dimension, results []SearchResult, opts Options) ([]objects.RawArticle, error) {
	rows := make([]objects.RawArticle, 0, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		// 超过列宽的 url 会让整批 upsert 失败, 单独丢掉
		if utf8.RuneCountInString(r.URL) > objects.MaxURLLength {
			o.log.Warn("url too long, drop result", zap.Stringer("dimension", dim), zap.Int("length", len(r.URL)))
			continue
		}
		// 过短的正文只当作片段, 不覆盖 staging 里已经补全过的全文
		snippet, full := r.Description, r.Content
		if utf8.RuneCountInString(full) < opts.MinContentLength {
			if snippet == "" {
				snippet = full
			}
			full = ""
		}
		rows = append(rows, objects.RawArticle{
			URL:         r.URL,
			Title:       utils.Truncate(r.Title, objects.MaxTitleLength),
			Snippet:     snippet,
			FullContent: full,
			Topic:       dim.Topic,
			Category:    dim.Category,
			Source:      utils.Truncate(sourceOf(r), objects.MaxSourceLength),
			PublishedAt: r.PublishedAt,
		})
		urls = append(urls, r.URL)
	}

	if err := o.deps.Staging.UpsertBatch(ctx, rows); err != nil {
		return nil, err
	}
	candidates, err := o.deps.Staging.FindByURLs(ctx, dedupe(urls))
	if err != nil {
		return nil, err
	}

	if opts.BacklogLimit > 0 {
		backlog, err := o.deps.Staging.ListUnsummarized(ctx, dim.Topic, dim.Category, opts.BacklogLimit)
		if err != nil {
			o.log.Warn("load backlog failed", zap.Stringer("dimension", dim), zap.Error(err))
			return candidates, nil
		}
		seen := make(map[string]struct{}, len(candidates))
		for _, c := range candidates {
			seen[c.URL] = struct{}{}
		}
		for _, b := range backlog {
			if _, ok := seen[b.URL]; !ok {
				candidates = append(candidates, b)
			}
		}
	}
	return candidates, nil
}

func (o *Orchestrator) process(ctx context.Context, dim Dimension, a *objects.RawArticle, opts Options, throttle *Throttle) (*objects.SummarizedArticle, outcome) {
	log := o.log.With(zap.Stringer("dimension", dim), zap.String("url", a.URL))

	if o.deps.Filter != nil {
		if blocked, word := o.deps.Filter.Blocked(a.Title + " " + a.Snippet); blocked {
			log.Debug("blocked word, skip", zap.String("word", word))
			recordSummary("blocked")
			return nil, outcomeSkipped
		}
	}

	// 重新检查, 同一个 url 可能在前面的 dimension 或其他 run 里已经处理
	exists, err := o.deps.Summaries.Exists(ctx, a.URL)
	if err != nil {
		log.Error("dedup check failed", zap.Error(err))
		return nil, outcomeFailed
	}
	if exists {
		return nil, outcomeSkipped
	}

	title, content, err := o.content(ctx, a, opts, throttle)
	if err != nil {
		return nil, outcomeCancelled
	}
	if content == "" {
		log.Debug("no content, skip")
		return nil, outcomeSkipped
	}

	if err := throttle.Wait(ctx, ProviderSummarization); err != nil {
		return nil, outcomeCancelled
	}
	sctx, cancel := context.WithTimeout(ctx, opts.SummarizeTimeout)
	summary, err := o.deps.Summarizer.Summarize(sctx, title, content)
	cancel()
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("empty summary")
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcomeCancelled
		}
		log.Warn("summarize failed, skip", zap.Error(err))
		recordSummary("failed")
		return nil, outcomeFailed
	}

	article := &objects.SummarizedArticle{
		URL:       a.URL,
		Title:     title,
		Summary:   strings.TrimSpace(summary),
		Content:   content,
		Source:    a.Source,
		Topic:     dim.Topic,
		Category:  dim.Category,
		Timestamp: time.Now(),
	}
	// 摘要已经拿到, 即使 ctx 刚被取消也把这一篇写完
	if err := o.deps.Summaries.Create(context.WithoutCancel(ctx), article); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// 并发 run 抢先写入了
			log.Info("summary already created by another run")
			recordSummary("duplicate")
			return nil, outcomeSkipped
		}
		log.Error("save summary failed", zap.Error(err))
		recordSummary("failed")
		return nil, outcomeFailed
	}

	recordSummary("created")
	log.Info("📝 summary created", zap.String("title", title))
	return article, outcomeCreated
}

// content 正文过短时尝试 enrichment, 失败则退回到已有的片段
// 只在 ctx 被取消时返回 error
func (o *Orchestrator) content(ctx context.Context, a *objects.RawArticle, opts Options, throttle *Throttle) (string, string, error) {
	title := a.Title
	content := a.FullContent

	if utf8.RuneCountInString(content) < opts.MinContentLength && o.deps.Enricher != nil {
		if err := throttle.Wait(ctx, ProviderEnrichment); err != nil {
			return "", "", err
		}
		full, err := o.deps.Enricher.GetFullContent(ctx, a.URL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			o.log.Debug("enrichment not found, fallback to snippet", zap.String("url", a.URL), zap.Error(err))
		case full != nil && utf8.RuneCountInString(full.Text) > utf8.RuneCountInString(content):
			content = full.Text
			if title == "" {
				title = full.Title
			}
			if err := o.deps.Staging.UpdateContent(ctx, a.URL, content); err != nil {
				o.log.Warn("write back content failed", zap.String("url", a.URL), zap.Error(err))
			}
		}
	}

	if content == "" {
		content = a.Snippet
	}
	if title == "" {
		title = "Untitled"
	}
	return utils.Truncate(title, objects.MaxTitleLength), content, nil
}

func sourceOf(r SearchResult) string {
	if r.Source != "" {
		return r.Source
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
