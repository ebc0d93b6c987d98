package pipeline

import (
	"time"

	"github.com/iceymoss/go-feed/pkg/db/objects"
)

// Options 单次 RunBatch 的参数
type Options struct {
	// MaxNewSummaries 本次最多新建多少条摘要, 0 表示不限制
	MaxNewSummaries int
	// InterStageDelay 对同一个外部服务两次调用之间的最小间隔
	InterStageDelay time.Duration

	RetryAttempts    int
	RetryBaseDelay   time.Duration
	SummarizeTimeout time.Duration
	// MinContentLength 正文短于这个长度时认为只是片段, 需要 enrichment
	MinContentLength int
	// BacklogLimit 追加同维度历史上未摘要成功的文章数量, 0 关闭
	BacklogLimit int
}

// DefaultOptions 不限额的批量模式
func DefaultOptions() Options {
	return Options{
		InterStageDelay:  200 * time.Millisecond,
		RetryAttempts:    3,
		RetryBaseDelay:   2 * time.Second,
		SummarizeTimeout: 60 * time.Second,
		MinContentLength: 100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.RetryBaseDelay < 0 {
		o.RetryBaseDelay = 0
	}
	if o.SummarizeTimeout <= 0 {
		o.SummarizeTimeout = d.SummarizeTimeout
	}
	if o.MinContentLength <= 0 {
		o.MinContentLength = d.MinContentLength
	}
	if o.MaxNewSummaries < 0 {
		o.MaxNewSummaries = 0
	}
	return o
}

// Report 一次 run 的结果, 部分失败也会正常返回
type Report struct {
	DimensionsProcessed int                         `json:"dimensionsProcessed"`
	NewSummaries        int                         `json:"newSummaries"`
	Articles            []objects.SummarizedArticle `json:"articles"`
	Skipped             int                         `json:"skipped"`
	Failed              int                         `json:"failed"`
	QuotaReached        bool                        `json:"quotaReached"`
	Cancelled           bool                        `json:"cancelled"`
}

func (r *Report) quotaHit(max int) bool {
	return max > 0 && r.NewSummaries >= max
}
