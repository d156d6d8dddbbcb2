package rapidsql

import (
	"slices"
)

// FieldSelection 冲突更新时的字段选择策略
type FieldSelection interface {
	Apply(known []string) ([]string, error)
}

type allFields struct{}

// AllFields 保留全部字段
func AllFields() FieldSelection { return allFields{} }

func (allFields) Apply(known []string) ([]string, error) {
	return slices.Clone(known), nil
}

type includeFields []string

// Include 只使用给定字段
func Include(fields ...string) FieldSelection { return includeFields(slices.Clone(fields)) }

func (s includeFields) Apply([]string) ([]string, error) {
	return slices.Clone([]string(s)), nil
}

type excludeFields []string

// Exclude 排除给定字段；所有不存在的字段会在同一个错误中列出
func Exclude(fields ...string) FieldSelection { return excludeFields(slices.Clone(fields)) }

func (s excludeFields) Apply(known []string) ([]string, error) {
	var unknown []string
	for _, f := range s {
		if !slices.Contains(known, f) {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownFieldError{Fields: unknown}
	}
	out := make([]string, 0, len(known))
	for _, f := range known {
		if !slices.Contains(s, f) {
			out = append(out, f)
		}
	}
	return out, nil
}
