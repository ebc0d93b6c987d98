package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/iceymoss/go-feed/pkg/db/objects"
	"github.com/iceymoss/go-feed/pkg/transaction"

	"gorm.io/gorm/clause"
)

// ArticleFilter 查询 raw_articles 的过滤条件
type ArticleFilter struct {
	Topic     string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// TopicCount 每个 topic 的文章数
type TopicCount struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// ArticleRepo staging 表, 按 url 唯一
type ArticleRepo struct {
	tx *transaction.Manager
}

func NewArticleRepo(tx *transaction.Manager) *ArticleRepo {
	return &ArticleRepo{tx: tx}
}

// 每次重新发现时允许刷新的列; full_content 只在新值非空时覆盖
var (
	refreshColumns            = []string{"title", "snippet", "topic", "category", "source", "published_at", "updated_at"}
	refreshColumnsWithContent = append(append([]string{}, refreshColumns...), "full_content")
)

// UpsertBatch 在一个事务里 upsert 一批文章: 不存在则插入, 已存在则刷新可变字段
func (r *ArticleRepo) UpsertBatch(ctx context.Context, articles []objects.RawArticle) error {
	if len(articles) == 0 {
		return nil
	}

	// 同一批里重复的 url 只保留最后一次, postgres 不允许一条语句更新同一行两次
	last := make(map[string]int, len(articles))
	for i, a := range articles {
		last[a.URL] = i
	}

	var withContent, withoutContent []objects.RawArticle
	for i, a := range articles {
		if last[a.URL] != i {
			continue
		}
		if a.FullContent != "" {
			withContent = append(withContent, a)
		} else {
			withoutContent = append(withoutContent, a)
		}
	}

	return r.tx.Execute(ctx, nil, func(ctx context.Context) error {
		if err := r.upsert(ctx, withContent, refreshColumnsWithContent); err != nil {
			return err
		}
		return r.upsert(ctx, withoutContent, refreshColumns)
	})
}

func (r *ArticleRepo) upsert(ctx context.Context, rows []objects.RawArticle, columns []string) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.tx.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert raw articles: %w", err)
	}
	return nil
}

// UpdateContent 写回补全后的全文
func (r *ArticleRepo) UpdateContent(ctx context.Context, url, content string) error {
	err := r.tx.DB(ctx).Model(&objects.RawArticle{}).
		Where("url = ?", url).
		Updates(map[string]any{"full_content": content, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("update content %s: %w", url, err)
	}
	return nil
}

// FindByURL 不存在时返回 nil, nil
func (r *ArticleRepo) FindByURL(ctx context.Context, url string) (*objects.RawArticle, error) {
	var list []objects.RawArticle
	if err := r.tx.DB(ctx).Where("url = ?", url).Limit(1).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("find raw article: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// FindByURLs 按传入 urls 的顺序返回已存在的行
func (r *ArticleRepo) FindByURLs(ctx context.Context, urls []string) ([]objects.RawArticle, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	var list []objects.RawArticle
	if err := r.tx.DB(ctx).Where("url IN ?", urls).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("find raw articles: %w", err)
	}

	byURL := make(map[string]objects.RawArticle, len(list))
	for _, a := range list {
		byURL[a.URL] = a
	}
	ordered := make([]objects.RawArticle, 0, len(list))
	for _, u := range urls {
		if a, ok := byURL[u]; ok {
			ordered = append(ordered, a)
			delete(byURL, u)
		}
	}
	return ordered, nil
}

// ListUnsummarized 同一维度下还没有摘要的历史文章, 按发现时间升序
func (r *ArticleRepo) ListUnsummarized(ctx context.Context, topic, category string, limit int) ([]objects.RawArticle, error) {
	if limit <= 0 {
		return nil, nil
	}
	summarized := r.tx.DB(ctx).Model(&objects.SummarizedArticle{}).Select("url")

	var list []objects.RawArticle
	err := r.tx.DB(ctx).Where("topic = ? AND category = ?", topic, category).
		Where("url NOT IN (?)", summarized).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list unsummarized: %w", err)
	}
	return list, nil
}

// List 供 /api/articles 使用, 按创建时间倒序
func (r *ArticleRepo) List(ctx context.Context, f ArticleFilter) ([]objects.RawArticle, error) {
	q := r.tx.DB(ctx).Model(&objects.RawArticle{})
	if f.Topic != "" {
		q = q.Where("LOWER(topic) LIKE ?", likeInsensitive(f.Topic))
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) LIKE ?", likeInsensitive(f.Category))
	}
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", *f.EndDate)
	}

	var list []objects.RawArticle
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limitOrDefault(f.Limit)).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list raw articles: %w", err)
	}
	return list, nil
}

// Topics 所有出现过的 topic
func (r *ArticleRepo) Topics(ctx context.Context) ([]string, error) {
	var topics []string
	err := r.tx.DB(ctx).Model(&objects.RawArticle{}).Distinct().Order("topic").Pluck("topic", &topics).Error
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// Stats 总数以及按 topic 分组的数量
func (r *ArticleRepo) Stats(ctx context.Context) (int64, []TopicCount, error) {
	var total int64
	conn := r.tx.DB(ctx)
	if err := conn.Model(&objects.RawArticle{}).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("count raw articles: %w", err)
	}

	var byTopic []TopicCount
	err := conn.Model(&objects.RawArticle{}).
		Select("topic, COUNT(*) AS count").
		Group("topic").Order("topic").
		Scan(&byTopic).Error
	if err != nil {
		return 0, nil, fmt.Errorf("group by topic: %w", err)
	}
	return total, byTopic, nil
}
