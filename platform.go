package rapidsql

import (
	"fmt"
	"strings"
)

// ConflictPlatform 生成冲突子句；参数均为已转义的列名
type ConflictPlatform interface {
	// OnConflictNothing 冲突时不做任何事
	OnConflictNothing(identifiers []string) string
	// OnConflictUpdate 冲突时更新给定列；columns 为空时返回空字符串
	OnConflictUpdate(identifiers, columns []string) string
}

// Platform 在冲突子句之外还负责方言相关的连接更新语句
type Platform interface {
	ConflictPlatform
	// JoinUpdate 用 source（别名 t2）更新 target（别名 t1）；on 为匹配条件，set 为已转义的列
	JoinUpdate(target, source, on string, set []string) string
}

const (
	targetAlias = "t1"
	sourceAlias = "t2"
)

// MySQLPlatform MySQL / MariaDB
type MySQLPlatform struct{}

func (MySQLPlatform) OnConflictNothing(identifiers []string) string {
	if len(identifiers) == 0 {
		return ""
	}
	id := identifiers[0]
	return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", id, id)
}

func (MySQLPlatform) OnConflictUpdate(_, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	pairs := make([]string, len(columns))
	for i, col := range columns {
		pairs[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(pairs, ", ")
}

func (MySQLPlatform) JoinUpdate(target, source, on string, set []string) string {
	pairs := make([]string, len(set))
	for i, col := range set {
		pairs[i] = fmt.Sprintf("%s.%s = %s.%s", targetAlias, col, sourceAlias, col)
	}
	return fmt.Sprintf("UPDATE %s %s INNER JOIN %s %s ON %s SET %s",
		target, targetAlias, source, sourceAlias, on, strings.Join(pairs, ", "))
}

// StandardPlatform ON CONFLICT 语法（SQLite、PostgreSQL）
type StandardPlatform struct{}

func (StandardPlatform) OnConflictNothing(identifiers []string) string {
	if len(identifiers) == 0 {
		return "ON CONFLICT DO NOTHING"
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO NOTHING", strings.Join(identifiers, ", "))
}

func (StandardPlatform) OnConflictUpdate(identifiers, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	pairs := make([]string, len(columns))
	for i, col := range columns {
		pairs[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(identifiers, ", "), strings.Join(pairs, ", "))
}

func (StandardPlatform) JoinUpdate(target, source, on string, set []string) string {
	pairs := make([]string, len(set))
	for i, col := range set {
		pairs[i] = fmt.Sprintf("%s = %s.%s", col, sourceAlias, col)
	}
	return fmt.Sprintf("UPDATE %s AS %s SET %s FROM %s AS %s WHERE %s",
		target, targetAlias, strings.Join(pairs, ", "), source, sourceAlias, on)
}
