package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iceymoss/go-feed/internal/repo"
	"github.com/iceymoss/go-feed/pkg/db"
	"github.com/iceymoss/go-feed/pkg/db/objects"
	"github.com/iceymoss/go-feed/pkg/transaction"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	dbSeq       atomic.Int64
	longContent = strings.Repeat("full article body ", 20)
)

// fakeDiscoverer 按 query 返回固定结果
type fakeDiscoverer struct {
	mu      sync.Mutex
	results map[string][]SearchResult
	err     error
	calls   []string
}

func (f *fakeDiscoverer) Search(_ context.Context, query string, _ SearchFilters) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type fakeEnricher struct {
	texts map[string]string
	calls int
}

func (f *fakeEnricher) GetFullContent(_ context.Context, url string) (*FullContent, error) {
	f.calls++
	text, ok := f.texts[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return &FullContent{Text: text}, nil
}

type fakeSummarizer struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
	hook  func(ctx context.Context, title string) error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title, content string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	f.mu.Unlock()
	if f.hook != nil {
		if err := f.hook(ctx, title); err != nil {
			return "", err
		}
	}
	if f.fail[title] {
		return "", errors.New("llm unavailable")
	}
	return "summary of " + title, nil
}

type harness struct {
	conn       *gorm.DB
	discoverer *fakeDiscoverer
	enricher   *fakeEnricher
	summarizer *fakeSummarizer
	staging    *repo.ArticleRepo
	summaries  *repo.SummaryRepo
	sleeps     []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:pipeline_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tx := transaction.NewManager(conn)
	return &harness{
		conn:       conn,
		discoverer: &fakeDiscoverer{results: map[string][]SearchResult{}},
		enricher:   &fakeEnricher{texts: map[string]string{}},
		summarizer: &fakeSummarizer{fail: map[string]bool{}},
		staging:    repo.NewArticleRepo(tx),
		summaries:  repo.NewSummaryRepo(tx),
	}
}

func (h *harness) orchestrator(opts ...func(*Deps)) *Orchestrator {
	deps := Deps{
		Discoverer: h.discoverer,
		Enricher:   h.enricher,
		Summarizer: h.summarizer,
		Staging:    h.staging,
		Summaries:  h.summaries,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	for _, o := range opts {
		o(&deps)
	}
	return New(deps)
}

func (h *harness) rawCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, h.conn.Model(&objects.RawArticle{}).Count(&n).Error)
	return n
}

func (h *harness) summaryURLs(t *testing.T) []string {
	var urls []string
	require.NoError(t, h.conn.Model(&objects.SummarizedArticle{}).Order("url").Pluck("url", &urls).Error)
	return urls
}

func testOptions() Options {
	return Options{RetryAttempts: 3, RetryBaseDelay: time.Second}
}

func (h *harness) seedAB() []Dimension {
	h.discoverer.results["security news"] = []SearchResult{
		{Title: "A", URL: "https://a.com/post", Description: "a", Content: longContent},
		{Title: "B", URL: "https://b.com/post", Description: "short snippet", Content: "short snippet"},
	}
	h.enricher.texts["https://b.com/post"] = longContent + " from b"
	return []Dimension{{Topic: "security", Category: "news"}}
}

func TestRunBatchEnrichesSnippetOnlyArticles(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()

	report := h.orchestrator().RunBatch(context.Background(), dims, testOptions())

	assert.Equal(t, 1, report.DimensionsProcessed)
	assert.Equal(t, 2, report.NewSummaries)
	require.Len(t, report.Articles, 2)
	assert.Equal(t, "https://a.com/post", report.Articles[0].URL)
	assert.Equal(t, "security", report.Articles[0].Topic)
	assert.Equal(t, "a.com", report.Articles[0].Source)
	assert.Equal(t, longContent+" from b", report.Articles[1].Content)

	assert.Equal(t, int64(2), h.rawCount(t))
	assert.Equal(t, []string{"https://a.com/post", "https://b.com/post"}, h.summaryURLs(t))
	// 只有 B 需要 enrichment
	assert.Equal(t, 1, h.enricher.calls)

	// enrichment 结果写回 staging
	b, err := h.staging.FindByURL(context.Background(), "https://b.com/post")
	require.NoError(t, err)
	assert.Equal(t, longContent+" from b", b.FullContent)
}

func TestRunBatchSummarizeFailureLeavesArticleEligible(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	h.summarizer.fail["B"] = true
	o := h.orchestrator()

	report := o.RunBatch(context.Background(), dims, testOptions())
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int64(2), h.rawCount(t))
	assert.Equal(t, []string{"https://a.com/post"}, h.summaryURLs(t))

	// 下一次 run 重试 B, A 不再摘要
	h.summarizer.fail["B"] = false
	h.summarizer.calls = nil
	report = o.RunBatch(context.Background(), dims, testOptions())
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, []string{"B"}, h.summarizer.calls)
	assert.Equal(t, []string{"https://a.com/post", "https://b.com/post"}, h.summaryURLs(t))
}

func TestRunBatchIsIdempotent(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	o := h.orchestrator()

	first := o.RunBatch(context.Background(), dims, testOptions())
	require.Equal(t, 2, first.NewSummaries)

	h.summarizer.calls = nil
	second := o.RunBatch(context.Background(), dims, testOptions())
	assert.Equal(t, 0, second.NewSummaries)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, second.Articles)
	assert.Empty(t, h.summarizer.calls)
	assert.Equal(t, []string{"https://a.com/post", "https://b.com/post"}, h.summaryURLs(t))
}

func TestRunBatchQuotaStopsWholeRun(t *testing.T) {
	h := newHarness(t)
	dims := CrossProduct([]string{"t1", "t2", "t3"}, []string{"c"})
	for _, d := range dims {
		var results []SearchResult
		for i := 0; i < 3; i++ {
			u := fmt.Sprintf("https://%s.example.com/%d", d.Topic, i)
			results = append(results, SearchResult{Title: fmt.Sprintf("%s_%d", d.Topic, i), URL: u, Content: longContent})
		}
		h.discoverer.results[DefaultQuery(d)] = results
	}

	opts := testOptions()
	opts.MaxNewSummaries = 4
	report := h.orchestrator().RunBatch(context.Background(), dims, opts)

	assert.Equal(t, 4, report.NewSummaries)
	assert.True(t, report.QuotaReached)
	assert.Equal(t, 2, report.DimensionsProcessed)
	// 第三个 dimension 不会再调用 discovery
	assert.Equal(t, []string{"t1 c", "t2 c"}, h.discoverer.calls)
	assert.Equal(t, []string{"t1_0", "t1_1", "t1_2", "t2_0"}, titles(report.Articles))
	assert.Len(t, h.summaryURLs(t), 4)
}

func TestRunBatchDiscoveryRetryBound(t *testing.T) {
	h := newHarness(t)
	h.discoverer.err = errors.New("503 from provider")

	report := h.orchestrator().RunBatch(context.Background(), []Dimension{{Topic: "ai", Category: "news"}}, testOptions())

	assert.Len(t, h.discoverer.calls, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps)
	assert.Equal(t, 1, report.DimensionsProcessed)
	assert.Equal(t, 0, report.NewSummaries)
	assert.False(t, report.Cancelled)
	assert.Equal(t, int64(0), h.rawCount(t))
}

func TestRunBatchDiscoveryFailureMovesToNextDimension(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyDiscoverer{inner: h.discoverer, failQuery: "ai news"}
	h.discoverer.results["ai research"] = []SearchResult{{Title: "R", URL: "https://r.com/1", Content: longContent}}

	o := h.orchestrator(func(d *Deps) { d.Discoverer = flaky })
	report := o.RunBatch(context.Background(), CrossProduct([]string{"ai"}, []string{"news", "research"}), testOptions())

	assert.Equal(t, 2, report.DimensionsProcessed)
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 3, flaky.failures)
}

func TestRunBatchStagingUpsertKeepsLatestCategory(t *testing.T) {
	h := newHarness(t)
	shared := SearchResult{Title: "S", URL: "https://s.com/1", Description: "snippet"}
	h.discoverer.results["ai news"] = []SearchResult{shared}
	h.discoverer.results["ai research"] = []SearchResult{shared}
	// 没有正文也没有 enrichment, 只留在 staging
	o := h.orchestrator(func(d *Deps) { d.Enricher = nil; d.Summarizer = &fakeSummarizer{fail: map[string]bool{"S": true}} })

	o.RunBatch(context.Background(), CrossProduct([]string{"ai"}, []string{"news", "research"}), testOptions())

	var rows []objects.RawArticle
	require.NoError(t, h.conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "research", rows[0].Category)
}

func TestRunBatchSameURLUnderTwoDimensionsSummarizedOnce(t *testing.T) {
	h := newHarness(t)
	shared := SearchResult{Title: "S", URL: "https://s.com/1", Content: longContent}
	h.discoverer.results["ai news"] = []SearchResult{shared}
	h.discoverer.results["security news"] = []SearchResult{shared}

	report := h.orchestrator().RunBatch(context.Background(), CrossProduct([]string{"ai", "security"}, []string{"news"}), testOptions())

	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"S"}, h.summarizer.calls)
	assert.Equal(t, []string{"https://s.com/1"}, h.summaryURLs(t))
}

// racingSummaries 模拟另一个 run 在 Exists 和 Create 之间写入
type racingSummaries struct {
	*repo.SummaryRepo
}

func (r racingSummaries) Exists(context.Context, string) (bool, error) { return false, nil }

func TestRunBatchDuplicateCreateIsBenign(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	require.NoError(t, h.summaries.Create(context.Background(), &objects.SummarizedArticle{URL: "https://a.com/post", Title: "A", Summary: "other run"}))

	o := h.orchestrator(func(d *Deps) { d.Summaries = racingSummaries{h.summaries} })
	report := o.RunBatch(context.Background(), dims, testOptions())

	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"https://a.com/post", "https://b.com/post"}, h.summaryURLs(t))
}

func TestRunBatchCancellationAtCandidateBoundary(t *testing.T) {
	h := newHarness(t)
	h.seedAB()
	h.discoverer.results["security research"] = []SearchResult{{Title: "C", URL: "https://c.com/1", Content: longContent}}
	ctx, cancel := context.WithCancel(context.Background())
	h.summarizer.hook = func(_ context.Context, title string) error {
		if title == "A" {
			cancel()
		}
		return nil
	}

	report := h.orchestrator().RunBatch(ctx, CrossProduct([]string{"security"}, []string{"news", "research"}), testOptions())

	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.DimensionsProcessed)
	assert.Equal(t, []string{"A"}, h.summarizer.calls)
	assert.Equal(t, []string{"security news"}, h.discoverer.calls)
	// 已经拿到摘要的那篇照常落库
	assert.Equal(t, []string{"https://a.com/post"}, h.summaryURLs(t))
}

func TestRunBatchDeadlineOnlyReportsCancelledAfterExpiry(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	opts := testOptions()
	opts.InterStageDelay = 5 * time.Second
	start := time.Now()
	report := h.orchestrator().RunBatch(ctx, dims, opts)

	assert.True(t, report.Cancelled)
	// 被标记为取消时 ctx 一定已经结束
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"A"}, h.summarizer.calls)
	assert.Equal(t, []string{"https://a.com/post"}, h.summaryURLs(t))
}

func TestRunBatchDropsOverlongURLAndTruncatesTitle(t *testing.T) {
	h := newHarness(t)
	longURL := "https://a.com/" + strings.Repeat("x", objects.MaxURLLength)
	longTitle := strings.Repeat("t", objects.MaxTitleLength+50)
	h.discoverer.results["security news"] = []SearchResult{
		{Title: "too long", URL: longURL, Content: longContent},
		{Title: longTitle, URL: "https://b.com/post", Content: longContent},
	}

	report := h.orchestrator().RunBatch(context.Background(), []Dimension{{Topic: "security", Category: "news"}}, testOptions())

	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, int64(1), h.rawCount(t))
	assert.Equal(t, []string{"https://b.com/post"}, h.summaryURLs(t))

	b, err := h.staging.FindByURL(context.Background(), "https://b.com/post")
	require.NoError(t, err)
	assert.Len(t, []rune(b.Title), objects.MaxTitleLength)
	require.Len(t, report.Articles, 1)
	assert.Len(t, []rune(report.Articles[0].Title), objects.MaxTitleLength)
}

func TestRunBatchSkipsOverlongDimension(t *testing.T) {
	h := newHarness(t)
	h.seedAB()
	longTopic := strings.Repeat("k", objects.MaxDimensionLength+1)

	report := h.orchestrator().RunBatch(context.Background(), []Dimension{
		{Topic: longTopic, Category: "news"},
		{Topic: "security", Category: "news"},
	}, testOptions())

	assert.Equal(t, 2, report.DimensionsProcessed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.NewSummaries)
	assert.Equal(t, []string{"security news"}, h.discoverer.calls)
}

func TestRunBatchSummarizeTimeout(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	h.summarizer.hook = func(ctx context.Context, title string) error {
		if title != "A" {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}

	opts := testOptions()
	opts.SummarizeTimeout = 20 * time.Millisecond
	report := h.orchestrator().RunBatch(context.Background(), dims, opts)

	assert.False(t, report.Cancelled)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, []string{"https://b.com/post"}, h.summaryURLs(t))
}

func TestRunBatchEmptySummaryNotPersisted(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	o := h.orchestrator(func(d *Deps) { d.Summarizer = blankSummarizer{} })

	report := o.RunBatch(context.Background(), dims, testOptions())
	assert.Equal(t, 0, report.NewSummaries)
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, h.summaryURLs(t))
}

func TestRunBatchBlockedWordsSkipCandidate(t *testing.T) {
	h := newHarness(t)
	dims := h.seedAB()
	o := h.orchestrator(func(d *Deps) { d.Filter = titleFilter("B") })

	report := o.RunBatch(context.Background(), dims, testOptions())
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"A"}, h.summarizer.calls)
}

func TestRunBatchProcessesBacklog(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.staging.UpsertBatch(context.Background(), []objects.RawArticle{
		{URL: "https://old.com/1", Title: "Old", FullContent: longContent, Topic: "ai", Category: "news"},
	}))

	opts := testOptions()
	opts.BacklogLimit = 5
	report := h.orchestrator().RunBatch(context.Background(), []Dimension{{Topic: "ai", Category: "news"}}, opts)
	assert.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, []string{"Old"}, h.summarizer.calls)

	// 关闭积压时不处理
	h2 := newHarness(t)
	require.NoError(t, h2.staging.UpsertBatch(context.Background(), []objects.RawArticle{
		{URL: "https://old.com/1", Title: "Old", FullContent: longContent, Topic: "ai", Category: "news"},
	}))
	report = h2.orchestrator().RunBatch(context.Background(), []Dimension{{Topic: "ai", Category: "news"}}, testOptions())
	assert.Equal(t, 0, report.NewSummaries)
}

func TestRunBatchFallsBackToSnippetWhenEnrichmentMissing(t *testing.T) {
	h := newHarness(t)
	h.discoverer.results["ai news"] = []SearchResult{{Title: "S", URL: "https://s.com/1", Description: "only a snippet"}}

	report := h.orchestrator().RunBatch(context.Background(), []Dimension{{Topic: "ai", Category: "news"}}, testOptions())
	require.Equal(t, 1, report.NewSummaries)
	assert.Equal(t, "only a snippet", report.Articles[0].Content)
	assert.Equal(t, 1, h.enricher.calls)
}

type flakyDiscoverer struct {
	inner     Discoverer
	failQuery string
	failures  int
}

func (f *flakyDiscoverer) Search(ctx context.Context, query string, filters SearchFilters) ([]SearchResult, error) {
	if query == f.failQuery {
		f.failures++
		return nil, errors.New("timeout")
	}
	return f.inner.Search(ctx, query, filters)
}

type blankSummarizer struct{}

func (blankSummarizer) Summarize(context.Context, string, string) (string, error) { return "  \n", nil }

type titleFilter string

func (f titleFilter) Blocked(text string) (bool, string) {
	return strings.HasPrefix(text, string(f)+" "), string(f)
}

func titles(list []objects.SummarizedArticle) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}
