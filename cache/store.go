// Package cache 提供统一的缓存服务
// Redis不可用时降级为进程内缓存
package cache

import (
	"context"
	"time"
)

// Store 缓存后端的最小接口
// Get的second返回值表示key是否存在（或已过期视为不存在）
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushAll(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
	Backend() string
	Close() error
}

// 缓存时间配置
const (
	TTLStockList   = 24 * time.Hour
	TTLStockInfo   = 24 * time.Hour
	TTLKlineDaily  = 6 * time.Hour
	TTLKlineWeekly = 24 * time.Hour
	TTLKlineMonth  = 24 * time.Hour
	TTLKlineMinute = 60 * time.Second
	TTLQuote       = 10 * time.Second
	TTLIndex       = 60 * time.Second
	TTLSearch      = 5 * time.Minute
)

// 缓存key前缀
const (
	PrefixStockInfo = "stock:info"
	PrefixRealtime  = "realtime"
)

// TTLForPeriod 根据K线周期返回缓存时间
// 分钟级最短，日线中等，周/月线最长
func TTLForPeriod(period string) time.Duration {
	switch period {
	case "1", "5", "15", "30", "60":
		return TTLKlineMinute
	case "weekly":
		return TTLKlineWeekly
	case "monthly":
		return TTLKlineMonth
	default:
		return TTLKlineDaily
	}
}
