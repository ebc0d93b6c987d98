package repo

import (
	"errors"
	"strings"
)

// ErrDuplicate 摘要已存在 (url 唯一约束冲突), 调用方应当作跳过处理
var ErrDuplicate = errors.New("summary already exists")

const (
	defaultLimit = 50
	maxLimit     = 500
)

func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// likeInsensitive 构造大小写不敏感的 contains 匹配
func likeInsensitive(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
