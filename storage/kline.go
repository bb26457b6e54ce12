// Package storage 在数据源管理器之上提供K线结果级缓存
package storage

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/market"
	"finassist/market/providers"
)

// BatchLimit 批量查询单次最多处理的股票数
const BatchLimit = 20

const keyPrefix = "kline_storage"

const indexKeyPrefix = "index_kline"

// KlineStore 封装数据源管理器，按完整请求参数缓存成功结果
// 缓存命中时结果带FromCache标记；失败结果不落缓存
type KlineStore struct {
	manager *providers.Manager
	cache   *cache.Service
	logger  *zap.Logger
}

func New(manager *providers.Manager, cacheSvc *cache.Service, logger *zap.Logger) *KlineStore {
	return &KlineStore{
		manager: manager,
		cache:   cacheSvc,
		logger:  logger,
	}
}

// GetKline 获取K线，source为空表示自动选源
func (s *KlineStore) GetKline(ctx context.Context, req providers.KlineRequest, source string) market.KlineResult {
	key := storageKey(req, source)

	var cached market.KlineResult
	if s.cache.GetJSON(ctx, key, &cached) {
		cached.FromCache = true
		return cached
	}

	result := s.manager.GetKlineFrom(ctx, req, source)
	if result.Error == "" && len(result.Data) > 0 {
		s.cache.SetJSON(ctx, key, result, cache.TTLForPeriod(req.Period))
	}
	return result
}

// GetIndexKline 指数K线，东财为首选源
// 指数盘中变动快，不分周期统一用短缓存
func (s *KlineStore) GetIndexKline(ctx context.Context, req providers.KlineRequest) market.KlineResult {
	key := cache.Join(indexKeyPrefix, req.TsCode, req.Period,
		req.StartDate, req.EndDate, strconv.Itoa(req.Limit))

	var cached market.KlineResult
	if s.cache.GetJSON(ctx, key, &cached) {
		cached.FromCache = true
		return cached
	}

	result := s.manager.GetKlineFrom(ctx, req, "eastmoney")
	if result.Error == "" && len(result.Data) > 0 {
		s.cache.SetJSON(ctx, key, result, cache.TTLIndex)
	}
	return result
}

// GetLatest 获取最近limit根K线
func (s *KlineStore) GetLatest(ctx context.Context, tsCode, period string, limit int) market.KlineResult {
	return s.GetKline(ctx, providers.KlineRequest{
		TsCode: tsCode,
		Period: period,
		Limit:  limit,
	}, "")
}

// BatchGetKline 批量获取多只股票的K线
// 顺序执行，单只失败不影响其余；超过BatchLimit直接拒绝
func (s *KlineStore) BatchGetKline(ctx context.Context, tsCodes []string, period string, limit int, source string) ([]market.KlineResult, error) {
	if len(tsCodes) == 0 {
		return nil, fmt.Errorf("empty ts_code list")
	}
	if len(tsCodes) > BatchLimit {
		return nil, fmt.Errorf("batch size %d exceeds limit %d", len(tsCodes), BatchLimit)
	}

	results := make([]market.KlineResult, 0, len(tsCodes))
	for _, tsCode := range tsCodes {
		results = append(results, s.GetKline(ctx, providers.KlineRequest{
			TsCode: tsCode,
			Period: period,
			Limit:  limit,
		}, source))
	}
	return results, nil
}

// ClearCache 清除K线缓存，tsCode为空时清除全部
// 返回删除的key数量
func (s *KlineStore) ClearCache(ctx context.Context, tsCode string) int {
	pattern := keyPrefix + ":*"
	if tsCode != "" {
		pattern = keyPrefix + ":" + tsCode + ":*"
	}

	keys := s.cache.Keys(ctx, pattern)
	removed := 0
	for _, key := range keys {
		if s.cache.Delete(ctx, key) {
			removed++
		}
	}
	s.logger.Info("kline cache cleared",
		zap.String("ts_code", tsCode),
		zap.Int("removed", removed))
	return removed
}

// Stats 缓存统计，附带K线缓存条目数
func (s *KlineStore) Stats(ctx context.Context) map[string]interface{} {
	stats := s.cache.Stats(ctx)
	stats["kline_entries"] = len(s.cache.Keys(ctx, keyPrefix+":*"))
	return stats
}

// storageKey 完整请求参数参与key，不同参数组合互不命中
func storageKey(req providers.KlineRequest, source string) string {
	if source == "" {
		source = "auto"
	}
	return cache.Join(keyPrefix, req.TsCode, req.Period, source,
		req.StartDate, req.EndDate, strconv.Itoa(req.Limit))
}
