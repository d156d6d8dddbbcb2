package rapidsql

import (
	"sort"
	"sync"
)

// TemporaryTableStyle 临时表 DDL 的方言差异，格式串中的 %s 为已转义的表名
type TemporaryTableStyle struct {
	Create       string // 如 "CREATE TEMPORARY TABLE %s"
	Drop         string
	DropIfExists string
	// Collation 表级排序规则子句格式，为空表示方言不支持
	Collation string
	// DefaultColumnType 列类型未知时使用；为空时省略类型（SQLite）
	DefaultColumnType string
	// DefaultKeyColumnType 未声明类型且参与唯一约束或索引的列，为空时同 DefaultColumnType
	DefaultKeyColumnType string
	// RequireColumnType 为 true 时所有列必须声明类型
	RequireColumnType bool
	PositionType      string
}

// Dialect 一种数据库方言
type Dialect struct {
	Name      string
	Platform  Platform
	Escaper   Escaper
	Temporary TemporaryTableStyle
}

var (
	// MySQLDialect MySQL / MariaDB
	MySQLDialect = &Dialect{
		Name:     "mysql",
		Platform: MySQLPlatform{},
		Escaper:  MySQLEscaper,
		Temporary: TemporaryTableStyle{
			Create:               "CREATE TEMPORARY TABLE %s",
			Drop:                 "DROP TEMPORARY TABLE %s",
			DropIfExists:         "DROP TEMPORARY TABLE IF EXISTS %s",
			Collation:            "COLLATE=%s",
			DefaultColumnType:    "LONGTEXT",
			DefaultKeyColumnType: "VARCHAR(255)",
			PositionType:         "BIGINT",
		},
	}

	// SQLiteDialect SQLite 3.33+
	SQLiteDialect = &Dialect{
		Name:     "sqlite",
		Platform: StandardPlatform{},
		Escaper:  SQLiteEscaper,
		Temporary: TemporaryTableStyle{
			Create:       "CREATE TEMP TABLE %s",
			Drop:         "DROP TABLE temp.%s",
			DropIfExists: "DROP TABLE IF EXISTS temp.%s",
			PositionType: "INTEGER",
		},
	}
)

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]*Dialect{}
)

func init() {
	RegisterDialect(MySQLDialect)
	RegisterDialect(SQLiteDialect, "sqlite3")
	RegisterDialect(&Dialect{
		Name:      "mariadb",
		Platform:  MySQLDialect.Platform,
		Escaper:   MySQLDialect.Escaper,
		Temporary: MySQLDialect.Temporary,
	})
}

// RegisterDialect 注册方言，可附带别名；同名注册会覆盖
func RegisterDialect(d *Dialect, aliases ...string) {
	if d == nil || d.Name == "" {
		panic("rapidsql: RegisterDialect with nil dialect or empty name")
	}
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[d.Name] = d
	for _, alias := range aliases {
		dialects[alias] = d
	}
}

// LookupDialect 按名称查找方言
func LookupDialect(name string) (*Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, &UnsupportedPlatformError{Name: name}
	}
	return d, nil
}

// Dialects 返回已注册的方言名（含别名），按字母排序
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
