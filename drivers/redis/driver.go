package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rushairer/rapidsql"
)

// DefaultKeyPrefix 序列键前缀
const DefaultKeyPrefix = "rapidsql:tmp"

// NameGenerator 基于 Redis INCR 的临时表名生成器，多实例之间名称唯一
// Redis 不可用时退回到随机名称
type NameGenerator struct {
	client   redis.UniversalClient
	prefix   string
	timeout  time.Duration
	fallback rapidsql.NameGenerator
	logger   zerolog.Logger
}

// NewNameGenerator 创建名称生成器
func NewNameGenerator(client redis.UniversalClient) *NameGenerator {
	return &NameGenerator{
		client:   client,
		prefix:   DefaultKeyPrefix,
		timeout:  time.Second,
		fallback: rapidsql.RandomNameGenerator{},
		logger:   zerolog.Nop(),
	}
}

// WithKeyPrefix 设置序列键前缀
func (g *NameGenerator) WithKeyPrefix(prefix string) *NameGenerator {
	if prefix != "" {
		g.prefix = prefix
	}
	return g
}

// WithTimeout 设置单次 INCR 超时
func (g *NameGenerator) WithTimeout(timeout time.Duration) *NameGenerator {
	if timeout > 0 {
		g.timeout = timeout
	}
	return g
}

// WithFallback 设置 Redis 不可用时的生成器
func (g *NameGenerator) WithFallback(fallback rapidsql.NameGenerator) *NameGenerator {
	if fallback != nil {
		g.fallback = fallback
	}
	return g
}

// WithLogger 设置日志
func (g *NameGenerator) WithLogger(logger zerolog.Logger) *NameGenerator {
	g.logger = logger
	return g
}

// Key 表对应的序列键
func (g *NameGenerator) Key(original string) string {
	return g.prefix + ":" + original
}

// Generate 原表名 + "_tmp_" + 序列号
func (g *NameGenerator) Generate(original string) string {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	n, err := g.client.Incr(ctx, g.Key(original)).Result()
	if err != nil {
		g.logger.Warn().Err(err).Str("table", original).Msg("name sequence unavailable, using fallback")
		return g.fallback.Generate(original)
	}
	return fmt.Sprintf("%s_tmp_%d", original, n)
}

// NewClient 按地址创建客户端
func NewClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: db})
}
