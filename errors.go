package rapidsql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaMismatch 行字段集合或顺序与批次不一致
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrEmptyValues 更新行只包含条件字段
	ErrEmptyValues = errors.New("empty values")

	// ErrUnknownField 字段选择引用了不存在的字段
	ErrUnknownField = errors.New("unknown field")

	// ErrConfiguration 缺少标识列或匹配列等构建期配置错误
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedPlatform 未注册的数据库方言
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrInvalidValue 无法转义的值类型
	ErrInvalidValue = errors.New("invalid value")

	// ErrExecution 执行器返回的错误
	ErrExecution = errors.New("execution failed")
)

// SchemaMismatchError 行字段与批次已确定的字段不一致
type SchemaMismatchError struct {
	Missing  []string
	Extra    []string
	Expected []string
	Given    []string
}

func (e *SchemaMismatchError) Error() string {
	switch {
	case len(e.Missing) > 0 && len(e.Extra) > 0:
		return fmt.Sprintf("missing fields: %s, extra fields: %s", strings.Join(e.Missing, ", "), strings.Join(e.Extra, ", "))
	case len(e.Missing) > 0:
		return fmt.Sprintf("missing fields: %s", strings.Join(e.Missing, ", "))
	case len(e.Extra) > 0:
		return fmt.Sprintf("extra fields: %s", strings.Join(e.Extra, ", "))
	default:
		return fmt.Sprintf("fields must have the same order: expected (%s), given (%s)",
			strings.Join(e.Expected, ", "), strings.Join(e.Given, ", "))
	}
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// EmptyValuesError 更新行没有任何非条件字段
type EmptyValuesError struct {
	Table      string
	Conditions []string
}

func (e *EmptyValuesError) Error() string {
	return fmt.Sprintf("update of %s: at least one non-condition value must be provided besides (%s)",
		e.Table, strings.Join(e.Conditions, ", "))
}

func (e *EmptyValuesError) Is(target error) bool { return target == ErrEmptyValues }

// UnknownFieldError 列出所有不存在的字段
type UnknownFieldError struct {
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("the following fields to exclude do not exist: %s", strings.Join(e.Fields, ", "))
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// ConfigurationError 构建 SQL 时发现的配置问题
type ConfigurationError struct {
	Table  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Table == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// UnsupportedPlatformError 请求的方言没有注册
type UnsupportedPlatformError struct {
	Name string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no platform registered for dialect %q", e.Name)
}

func (e *UnsupportedPlatformError) Is(target error) bool { return target == ErrUnsupportedPlatform }

// InvalidValueError 值无法转换为 SQL 字面量
type InvalidValueError struct {
	Column string
	Value  any
}

func (e *InvalidValueError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid value type: %T", e.Value)
	}
	return fmt.Sprintf("invalid value type for column %s: %T", e.Column, e.Value)
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }

// ExecutionError 包装执行器（数据库驱动）返回的错误，保留原始错误链
type ExecutionError struct {
	Table string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("execute script: %v", e.Err)
	}
	return fmt.Sprintf("execute script for %s: %v", e.Table, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }
