package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service 统一缓存服务
// 所有操作fail-soft：任何后端错误都记录日志并按miss/no-op处理，
// 缓存永远不是正确性依赖
type Service struct {
	store  Store
	logger *zap.Logger
}

// New selects the backend once at startup: Redis when a URL is
// configured and alive, otherwise the bounded in-memory fallback.
// There is no re-promotion to Redis within the process lifetime.
func New(redisURL string, memoryMaxEntries int, logger *zap.Logger) *Service {
	if redisURL != "" {
		store, err := NewRedisStore(redisURL)
		if err == nil {
			logger.Info("redis cache initialized", zap.String("backend", "redis"))
			return &Service{store: store, logger: logger}
		}
		logger.Warn("redis unavailable, using in-memory cache (degraded)", zap.Error(err))
	} else {
		logger.Info("redis url not configured, using in-memory cache")
	}
	return &Service{store: NewMemoryStore(memoryMaxEntries), logger: logger}
}

// NewWithStore 使用指定后端构建缓存服务（测试用）
func NewWithStore(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get 获取缓存，失败按miss处理
func (s *Service) Get(ctx context.Context, key string) (string, bool) {
	val, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, ok
}

// Set 设置缓存，失败按no-op处理
func (s *Service) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete 删除缓存
func (s *Service) Delete(ctx context.Context, key string) bool {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Exists 检查key是否存在
func (s *Service) Exists(ctx context.Context, key string) bool {
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		s.logger.Warn("cache exists failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// Keys 返回匹配pattern的key列表
func (s *Service) Keys(ctx context.Context, pattern string) []string {
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache keys failed", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	return keys
}

// FlushAll 清空所有缓存
func (s *Service) FlushAll(ctx context.Context) bool {
	if err := s.store.FlushAll(ctx); err != nil {
		s.logger.Warn("cache flush failed", zap.Error(err))
		return false
	}
	return true
}

// GetJSON 获取并反序列化JSON缓存，任何失败都按miss处理
func (s *Service) GetJSON(ctx context.Context, key string, v interface{}) bool {
	data, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		s.logger.Warn("cache json decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON 序列化并写入JSON缓存
func (s *Service) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache json encode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return s.Set(ctx, key, string(data), ttl)
}

// Backend 当前后端标识（redis/memory）
func (s *Service) Backend() string { return s.store.Backend() }

// Stats 缓存统计信息，backend字段用于暴露降级状态
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"backend": s.store.Backend(),
	}
	size, err := s.store.Size(ctx)
	if err != nil {
		s.logger.Warn("cache stats failed", zap.Error(err))
		stats["keys"] = 0
		return stats
	}
	stats["keys"] = size
	return stats
}

// Close 关闭缓存后端
func (s *Service) Close() error { return s.store.Close() }

// StockInfoKey 股票信息缓存key
func StockInfoKey(tsCode string) string {
	return PrefixStockInfo + ":" + tsCode
}

// RealtimeKey 实时行情缓存key
func RealtimeKey(tsCode string) string {
	return PrefixRealtime + ":" + tsCode
}

// Join 按冒号拼接key片段
func Join(parts ...string) string {
	return strings.Join(parts, ":")
}
