package postgresql

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rushairer/rapidsql"
)

// UniqueViolation PostgreSQL 唯一约束冲突的 SQLSTATE
const UniqueViolation = "23505"

// Escaper PostgreSQL 转义规则，标识符与字符串使用 pq 的引用函数
var Escaper = &rapidsql.DefaultEscaper{
	IdentifierQuote: '"',
	TrueLiteral:     "TRUE",
	FalseLiteral:    "FALSE",
	TimeLayout:      "2006-01-02 15:04:05.999999Z07:00",
	QuoteIdentifier: pq.QuoteIdentifier,
	QuoteString:     pq.QuoteLiteral,
	QuoteBytes: func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	},
}

// Dialect PostgreSQL 方言
var Dialect = &rapidsql.Dialect{
	Name:     "postgresql",
	Platform: rapidsql.StandardPlatform{},
	Escaper:  Escaper,
	Temporary: rapidsql.TemporaryTableStyle{
		Create:       "CREATE TEMPORARY TABLE %s",
		Drop:         "DROP TABLE %s",
		DropIfExists: "DROP TABLE IF EXISTS %s",
		// TEXT 列与整数列比较会报错，列类型必须显式声明
		RequireColumnType: true,
		PositionType:      "BIGINT",
	},
}

func init() {
	rapidsql.RegisterDialect(Dialect, "postgres")
}

// Open 打开 PostgreSQL 连接池
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgresql: %w", err)
	}
	return db, nil
}

// IsUniqueViolation 判断错误链中是否包含唯一约束冲突
func IsUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == UniqueViolation
}
