package rapidsql

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Escaper 把列名与值转换为 SQL 片段
type Escaper interface {
	EscapeColumn(name string) string
	EscapeValue(value any, column string) (string, error)
}

// DefaultTimeLayout 时间字面量格式，小数秒仅在存在时输出
const DefaultTimeLayout = "2006-01-02 15:04:05.999999"

// DefaultEscaper 可配置的转义器
type DefaultEscaper struct {
	IdentifierQuote  byte   // 标识符引号，MySQL 为 `，标准 SQL 为 "
	BackslashEscapes bool   // 字符串中的反斜杠是否为转义符（MySQL 默认开启）
	TrueLiteral      string // 布尔真值字面量
	FalseLiteral     string // 布尔假值字面量
	TimeLayout       string

	// 可选的自定义引用函数，设置后替代内置规则
	QuoteIdentifier func(string) string
	QuoteString     func(string) string
	QuoteBytes      func([]byte) string
}

var (
	// MySQLEscaper MySQL 转义规则
	MySQLEscaper = &DefaultEscaper{
		IdentifierQuote:  '`',
		BackslashEscapes: true,
		TrueLiteral:      "1",
		FalseLiteral:     "0",
		TimeLayout:       DefaultTimeLayout,
	}

	// SQLiteEscaper SQLite 转义规则
	SQLiteEscaper = &DefaultEscaper{
		IdentifierQuote: '"',
		TrueLiteral:     "1",
		FalseLiteral:    "0",
		TimeLayout:      DefaultTimeLayout,
	}
)

// EscapeColumn 引用标识符，内部的引号加倍
func (e *DefaultEscaper) EscapeColumn(name string) string {
	if e.QuoteIdentifier != nil {
		return e.QuoteIdentifier(name)
	}
	q := string(e.IdentifierQuote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// EscapeValue 把值转换为字面量；不支持的类型返回 InvalidValueError
func (e *DefaultEscaper) EscapeValue(value any, column string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case driver.Valuer:
		if isNilPointer(value) {
			return "NULL", nil
		}
		inner, err := v.Value()
		if err != nil {
			return "", fmt.Errorf("value for column %s: %w", column, err)
		}
		if _, again := inner.(driver.Valuer); again {
			return "", &InvalidValueError{Column: column, Value: value}
		}
		return e.EscapeValue(inner, column)
	case bool:
		return e.boolLiteral(v), nil
	case string:
		return e.quote(v), nil
	case []byte:
		if v == nil {
			return "NULL", nil
		}
		if e.QuoteBytes != nil {
			return e.QuoteBytes(v), nil
		}
		return "X'" + hex.EncodeToString(v) + "'", nil
	case time.Time:
		return e.quote(v.Format(e.timeLayout())), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return e.floatLiteral(v, 64, column, value)
	case float32:
		return e.floatLiteral(float64(v), 32, column, value)
	}

	// 指针与命名类型（枚举等）按底层类型处理
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return e.EscapeValue(rv.Elem().Interface(), column)
	case reflect.Bool:
		return e.boolLiteral(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return e.floatLiteral(rv.Float(), 32, column, value)
	case reflect.Float64:
		return e.floatLiteral(rv.Float(), 64, column, value)
	case reflect.String:
		return e.quote(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return e.EscapeValue(rv.Bytes(), column)
		}
	}

	if s, ok := value.(fmt.Stringer); ok {
		return e.quote(s.String()), nil
	}
	return "", &InvalidValueError{Column: column, Value: value}
}

func (e *DefaultEscaper) boolLiteral(b bool) string {
	if b {
		return e.TrueLiteral
	}
	return e.FalseLiteral
}

func (e *DefaultEscaper) floatLiteral(f float64, bits int, column string, value any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &InvalidValueError{Column: column, Value: value}
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

func (e *DefaultEscaper) timeLayout() string {
	if e.TimeLayout == "" {
		return DefaultTimeLayout
	}
	return e.TimeLayout
}

func (e *DefaultEscaper) quote(s string) string {
	if e.QuoteString != nil {
		return e.QuoteString(s)
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			if e.BackslashEscapes {
				b.WriteString(`\'`)
			} else {
				b.WriteString("''")
			}
		case e.BackslashEscapes && c == '\\':
			b.WriteString(`\\`)
		case e.BackslashEscapes && c == 0:
			b.WriteString(`\0`)
		case e.BackslashEscapes && c == '\n':
			b.WriteString(`\n`)
		case e.BackslashEscapes && c == '\r':
			b.WriteString(`\r`)
		case e.BackslashEscapes && c == 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
