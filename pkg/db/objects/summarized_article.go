package objects

import "time"

// SummarizedArticle 对应数据库表 summarized_articles
// 行的存在即表示该 URL 已经处理过, 流水线只创建不更新
type SummarizedArticle struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	URL string `gorm:"type:varchar(768);not null;uniqueIndex:idx_summary_url" json:"url"`

	Title   string `gorm:"type:varchar(512);not null" json:"title"`
	Summary string `gorm:"type:text;not null;comment:AI摘要" json:"summary"`
	Content string `gorm:"type:text" json:"content"`
	Source  string `gorm:"type:varchar(255)" json:"source"`

	Topic    string `gorm:"type:varchar(128);index" json:"topic"`
	Category string `gorm:"type:varchar(128);index" json:"category"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定表名
func (SummarizedArticle) TableName() string {
	return "summarized_articles"
}
