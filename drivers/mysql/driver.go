package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/rushairer/rapidsql"
)

// ErrDuplicateEntry MySQL 唯一键冲突错误码
const ErrDuplicateEntry = 1062

// Dialect MySQL 方言
var Dialect = rapidsql.MySQLDialect

// NormalizeDSN 解析 DSN 并开启多语句与时间解析，临时表脚本依赖多语句执行
func NormalizeDSN(dsn string) (*gomysql.Config, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.MultiStatements = true
	cfg.ParseTime = true
	return cfg, nil
}

// Open 打开 MySQL 连接池
func Open(dsn string) (*sql.DB, error) {
	cfg, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// IsDuplicateKey 判断错误链中是否包含唯一键冲突
func IsDuplicateKey(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == ErrDuplicateEntry
}
