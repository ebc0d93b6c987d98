package objects

import "time"

// 列宽, 写入前需要截断或拒绝超长的值
const (
	MaxURLLength       = 768
	MaxTitleLength     = 512
	MaxDimensionLength = 128
	MaxSourceLength    = 255
)

// RawArticle 对应数据库表 raw_articles
// 每个被发现的 URL 一行, 不管是否已经生成摘要
type RawArticle struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// 原文链接, 唯一键 (去重依据)
	URL string `gorm:"type:varchar(768);not null;uniqueIndex:idx_raw_url" json:"url"`

	Title   string `gorm:"type:varchar(512);not null" json:"title"`
	Snippet string `gorm:"type:text" json:"snippet"`

	// 全文, 可能为空 (只拿到了摘要片段)
	FullContent string `gorm:"type:text" json:"fullContent,omitempty"`

	Topic    string `gorm:"type:varchar(128);index:idx_raw_dimension" json:"topic"`
	Category string `gorm:"type:varchar(128);index:idx_raw_dimension" json:"category"`

	// 来源站点 host, 例如 techcrunch.com
	Source string `gorm:"type:varchar(255)" json:"source"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (RawArticle) TableName() string {
	return "raw_articles"
}
