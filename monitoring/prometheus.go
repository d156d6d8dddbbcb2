package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushairer/rapidsql"
)

var _ rapidsql.MetricsReporter = (*PrometheusReporter)(nil)

// PrometheusReporter Prometheus指标收集器，实现MetricsReporter接口
type PrometheusReporter struct {
	database string

	executeDuration *prometheus.HistogramVec
	executeTotal    *prometheus.CounterVec
	itemsProcessed  *prometheus.CounterVec
	scriptBytes     *prometheus.HistogramVec
	inflight        prometheus.Gauge
	concurrency     prometheus.Gauge
	errorTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusReporter 创建Prometheus指标收集器，database 作为常量标签
func NewPrometheusReporter(database string) *PrometheusReporter {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"database": database}

	pr := &PrometheusReporter{
		database: database,

		executeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "rapidsql_execute_duration_seconds",
				Help:        "Duration of script execution in seconds",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
				ConstLabels: constLabels,
			},
			[]string{"table", "status"},
		),

		executeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rapidsql_execute_total",
				Help:        "Total number of script executions",
				ConstLabels: constLabels,
			},
			[]string{"table", "status"},
		),

		itemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rapidsql_items_processed_total",
				Help:        "Total number of rows carried by successful scripts",
				ConstLabels: constLabels,
			},
			[]string{"table"},
		),

		scriptBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "rapidsql_script_bytes",
				Help:        "Size of executed scripts in bytes",
				Buckets:     prometheus.ExponentialBuckets(256, 4, 10), // 256B to ~64MB
				ConstLabels: constLabels,
			},
			[]string{"table"},
		),

		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rapidsql_inflight_scripts",
			Help:        "Number of scripts currently executing",
			ConstLabels: constLabels,
		}),

		concurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rapidsql_concurrency_limit",
			Help:        "Configured executor concurrency limit (0 means unlimited)",
			ConstLabels: constLabels,
		}),

		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rapidsql_errors_total",
				Help:        "Total number of errors",
				ConstLabels: constLabels,
			},
			[]string{"table", "kind"},
		),

		registry: registry,
	}

	// 注册所有指标，包括 Go 运行时与进程指标
	registry.MustRegister(
		pr.executeDuration,
		pr.executeTotal,
		pr.itemsProcessed,
		pr.scriptBytes,
		pr.inflight,
		pr.concurrency,
		pr.errorTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return pr
}

// Registry 自定义 registry
func (pr *PrometheusReporter) Registry() *prometheus.Registry {
	return pr.registry
}

func (pr *PrometheusReporter) ObserveExecuteDuration(table string, items int, duration time.Duration, status string) {
	pr.executeDuration.WithLabelValues(table, status).Observe(duration.Seconds())
	pr.executeTotal.WithLabelValues(table, status).Inc()
	if status == "success" {
		pr.itemsProcessed.WithLabelValues(table).Add(float64(items))
	}
}

func (pr *PrometheusReporter) ObserveScriptSize(table string, bytes int) {
	pr.scriptBytes.WithLabelValues(table).Observe(float64(bytes))
}

func (pr *PrometheusReporter) IncInflight() { pr.inflight.Inc() }

func (pr *PrometheusReporter) DecInflight() { pr.inflight.Dec() }

func (pr *PrometheusReporter) IncError(table string, kind string) {
	pr.errorTotal.WithLabelValues(table, kind).Inc()
}

func (pr *PrometheusReporter) SetConcurrency(n int) {
	pr.concurrency.Set(float64(n))
}

// Server 暴露 /metrics 与 /health 的 HTTP 服务
type Server struct {
	reporter *PrometheusReporter
	router   *gin.Engine
	server   *http.Server
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewServer 创建指标服务；同一个 reporter 可以创建多个服务
func NewServer(reporter *PrometheusReporter, logger zerolog.Logger) *Server {
	// 设置 Gin 为发布模式，减少日志输出
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	metricsHandler := promhttp.HandlerFor(reporter.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
	router.GET("/metrics", gin.WrapH(metricsHandler))
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return &Server{reporter: reporter, router: router, logger: logger}
}

// Handler HTTP 处理器，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 在 addr 上后台启动服务
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics server already running")
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := s.server
	go func() {
		s.logger.Info().Str("addr", addr).Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}
