package transaction

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// WithTransaction 把 tx 放进 ctx, repo 通过 Manager.DB(ctx) 取回
func WithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// InTransaction ctx 是否已经携带事务 (嵌套 Execute 直接复用外层)
func InTransaction(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// GetTransactionOrDB 优先返回 ctx 里的事务, 否则返回 defaultDB; 两者都绑定 ctx
func GetTransactionOrDB(ctx context.Context, defaultDB *gorm.DB) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return defaultDB.WithContext(ctx)
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}
