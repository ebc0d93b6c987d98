package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/iceymoss/go-feed/pkg/db/objects"
	"github.com/iceymoss/go-feed/pkg/transaction"

	"gorm.io/gorm/clause"
)

// SummaryFilter 查询 summarized_articles 的过滤条件
type SummaryFilter struct {
	Topic     string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// SummaryRepo 摘要表, 只创建不更新; 行存在即代表已处理
type SummaryRepo struct {
	tx *transaction.Manager
}

func NewSummaryRepo(tx *transaction.Manager) *SummaryRepo {
	return &SummaryRepo{tx: tx}
}

// Exists 判断 url 是否已经有摘要
func (r *SummaryRepo) Exists(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.tx.DB(ctx).Model(&objects.SummarizedArticle{}).Where("url = ?", url).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check summary %s: %w", url, err)
	}
	return count > 0, nil
}

// ExistingURLs 返回 urls 中已有摘要的集合
func (r *SummaryRepo) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(urls) == 0 {
		return set, nil
	}
	var found []string
	err := r.tx.DB(ctx).Model(&objects.SummarizedArticle{}).Where("url IN ?", urls).Pluck("url", &found).Error
	if err != nil {
		return nil, fmt.Errorf("check summaries: %w", err)
	}
	for _, u := range found {
		set[u] = struct{}{}
	}
	return set, nil
}

// Create 插入摘要; url 冲突时返回 ErrDuplicate 而不是数据库错误
// 两个并发 run 抢同一个 url 时, 后到者拿到 ErrDuplicate
func (r *SummaryRepo) Create(ctx context.Context, article *objects.SummarizedArticle) error {
	if article.Timestamp.IsZero() {
		article.Timestamp = time.Now()
	}
	res := r.tx.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(article)
	if res.Error != nil {
		return fmt.Errorf("create summary %s: %w", article.URL, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// List 按时间倒序
func (r *SummaryRepo) List(ctx context.Context, f SummaryFilter) ([]objects.SummarizedArticle, error) {
	q := r.tx.DB(ctx).Model(&objects.SummarizedArticle{})
	if f.Topic != "" {
		q = q.Where("LOWER(topic) LIKE ?", likeInsensitive(f.Topic))
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) LIKE ?", likeInsensitive(f.Category))
	}
	if f.StartDate != nil {
		q = q.Where("timestamp >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("timestamp <= ?", *f.EndDate)
	}

	var list []objects.SummarizedArticle
	if err := q.Order("timestamp DESC").Order("id DESC").Limit(limitOrDefault(f.Limit)).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return list, nil
}

// Count 摘要总数
func (r *SummaryRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.tx.DB(ctx).Model(&objects.SummarizedArticle{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return total, nil
}
