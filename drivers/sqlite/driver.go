package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/rushairer/rapidsql"
)

// Dialect SQLite 方言
var Dialect = rapidsql.SQLiteDialect

// Open 打开 SQLite 数据库
// 内存数据库限制为单连接，否则每个连接看到的是不同的数据库
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if IsMemory(path) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsMemory 是否为内存数据库
func IsMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

// IsUniqueViolation 判断错误链中是否包含唯一约束或主键冲突
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
