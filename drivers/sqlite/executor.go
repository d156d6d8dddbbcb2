package sqlite

import (
	"database/sql"

	"github.com/rushairer/rapidsql"
)

// NewExecutor 创建 SQLite 执行器
func NewExecutor(db *sql.DB) *rapidsql.SQLExecutor {
	return rapidsql.NewSQLExecutor(db)
}

// NewFactory 创建使用 SQLite 方言的操作工厂
func NewFactory(db *sql.DB, opts ...rapidsql.Option) *rapidsql.Factory {
	factory, err := rapidsql.NewFactory(Dialect.Name, NewExecutor(db), opts...)
	if err != nil {
		panic(err)
	}
	return factory
}
