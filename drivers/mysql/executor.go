package mysql

import (
	"database/sql"

	"github.com/rushairer/rapidsql"
)

// NewExecutor 创建 MySQL 执行器
// db 需要开启 multiStatements，推荐使用 Open 创建
func NewExecutor(db *sql.DB) *rapidsql.SQLExecutor {
	return rapidsql.NewSQLExecutor(db)
}

// NewFactory 创建使用 MySQL 方言的操作工厂
func NewFactory(db *sql.DB, opts ...rapidsql.Option) *rapidsql.Factory {
	factory, err := rapidsql.NewFactory(Dialect.Name, NewExecutor(db), opts...)
	if err != nil {
		// mysql 方言总是已注册
		panic(err)
	}
	return factory
}
