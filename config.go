package rapidsql

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 运行配置
type Config struct {
	Dialect        string                `yaml:"dialect"`         // mysql, sqlite, postgresql
	DSN            string                `yaml:"dsn"`             // 数据源，sqlite 为文件路径
	BatchSize      int                   `yaml:"batch_size"`      // Batched 自动执行阈值
	MaxConcurrency int                   `yaml:"max_concurrency"` // 执行器并发上限，0 表示不限流
	Temporary      TemporaryTableOptions `yaml:"temporary,omitempty"`
	NameSequence   NameSequenceConfig    `yaml:"name_sequence,omitempty"`
	Metrics        MetricsConfig         `yaml:"metrics,omitempty"`
	Log            LogConfig             `yaml:"log,omitempty"`
	Tables         []TableConfig         `yaml:"tables"`
}

// NameSequenceConfig Redis 临时表名序列
type NameSequenceConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr,omitempty"`
	DB      int           `yaml:"db,omitempty"`
	Key     string        `yaml:"key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MetricsConfig Prometheus 端点
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"` // 如 ":9090"
}

// LogConfig 日志
type LogConfig struct {
	Level   string `yaml:"level,omitempty"` // debug, info, warn, error
	Console bool   `yaml:"console,omitempty"`
}

// TableConfig 表结构
type TableConfig struct {
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
	Unique [][]string    `yaml:"unique,omitempty"`
}

// FieldConfig 字段
type FieldConfig struct {
	Name          string `yaml:"name"`
	Column        string `yaml:"column,omitempty"`
	Type          string `yaml:"type,omitempty"`
	Identifier    bool   `yaml:"identifier,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty"`
	NotInsertable bool   `yaml:"not_insertable,omitempty"`
	NotUpdatable  bool   `yaml:"not_updatable,omitempty"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Dialect:   "sqlite",
		DSN:       "file::memory:?cache=shared",
		BatchSize: 1000,
		NameSequence: NameSequenceConfig{
			Addr:    "localhost:6379",
			Key:     "rapidsql:tmp",
			Timeout: time.Second,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Console: true},
	}
}

// LoadConfig 从 YAML 文件加载配置，未设置的字段使用默认值
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 配置
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	dialect, err := LookupDialect(c.Dialect)
	if err != nil {
		return err
	}
	if c.DSN == "" {
		return &ConfigurationError{Reason: "dsn cannot be empty"}
	}
	if c.BatchSize <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("batch_size must be positive, got %d", c.BatchSize)}
	}
	if c.MaxConcurrency < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)}
	}
	if c.NameSequence.Enabled && c.NameSequence.Addr == "" {
		return &ConfigurationError{Reason: "name_sequence.addr cannot be empty when enabled"}
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if dialect.Temporary.RequireColumnType {
			for _, f := range t.Fields {
				if f.Type == "" {
					return &ConfigurationError{
						Table:  t.Name,
						Reason: fmt.Sprintf("field %s needs a type for %s", f.Name, dialect.Name),
					}
				}
			}
		}
		if seen[t.Name] {
			return &ConfigurationError{Table: t.Name, Reason: "table defined twice"}
		}
		seen[t.Name] = true
	}
	return nil
}

// FindTable 按名称查找表配置
func (c *Config) FindTable(name string) (*TableConfig, bool) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// Validate 校验表配置
func (t *TableConfig) Validate() error {
	if t.Name == "" {
		return &ConfigurationError{Reason: "table name cannot be empty"}
	}
	if len(t.Fields) == 0 {
		return &ConfigurationError{Table: t.Name, Reason: "fields cannot be empty"}
	}
	names := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return &ConfigurationError{Table: t.Name, Reason: "field name cannot be empty"}
		}
		names[f.Name] = true
	}
	var unknown []string
	for _, group := range t.Unique {
		for _, f := range group {
			if !names[f] {
				unknown = append(unknown, f)
			}
		}
	}
	if len(unknown) > 0 {
		return &ConfigurationError{Table: t.Name, Reason: "unique constraint references unknown fields: " + strings.Join(unknown, ", ")}
	}
	return nil
}

// Table 构建静态表结构
func (t *TableConfig) Table() *Table {
	table := NewTable(t.Name)
	for _, f := range t.Fields {
		table.AddField(Field(f))
	}
	for _, group := range t.Unique {
		table.WithUnique(group...)
	}
	return table
}
