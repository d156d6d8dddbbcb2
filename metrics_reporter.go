package rapidsql

import "time"

// MetricsReporter 性能监控报告器接口
type MetricsReporter interface {
	// ObserveExecuteDuration 记录一次脚本执行耗时，status 为 success / fail
	ObserveExecuteDuration(table string, items int, duration time.Duration, status string)
	// ObserveScriptSize 记录脚本字节数
	ObserveScriptSize(table string, bytes int)
	IncInflight()
	DecInflight()
	// IncError 按类型累计错误（execute / cleanup / query）
	IncError(table string, kind string)
	// SetConcurrency 当前并发上限，0 表示不限流
	SetConcurrency(n int)
}

// NoopMetricsReporter 空实现
type NoopMetricsReporter struct{}

// NewNoopMetricsReporter 创建空实现
func NewNoopMetricsReporter() *NoopMetricsReporter { return &NoopMetricsReporter{} }

func (*NoopMetricsReporter) ObserveExecuteDuration(string, int, time.Duration, string) {}
func (*NoopMetricsReporter) ObserveScriptSize(string, int)                             {}
func (*NoopMetricsReporter) IncInflight()                                              {}
func (*NoopMetricsReporter) DecInflight()                                              {}
func (*NoopMetricsReporter) IncError(string, string)                                   {}
func (*NoopMetricsReporter) SetConcurrency(int)                                        {}
