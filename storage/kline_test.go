package storage

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/market"
	"finassist/market/providers"
)

type flakyProvider struct {
	name  string
	calls int
	// 出现在failures里的代码查询报错
	failures map[string]bool
}

func (f *flakyProvider) Name() string                    { return f.name }
func (f *flakyProvider) Priority() int                   { return 1 }
func (f *flakyProvider) SupportsPeriod(period string) bool { return market.IsValidPeriod(period) }

func (f *flakyProvider) GetBars(ctx context.Context, req providers.KlineRequest) ([]market.Bar, error) {
	f.calls++
	if f.failures[req.TsCode] {
		return nil, errors.New("upstream down")
	}
	return []market.Bar{
		market.NewBar("20260820", 10, 10.8, 9.9, 10.5, 12345, 130000, 5.0, f.name),
	}, nil
}

func (f *flakyProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	return nil, providers.ErrNotSupported
}

func (f *flakyProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	return nil, providers.ErrNotSupported
}

func newTestStore(p providers.DataProvider) *KlineStore {
	logger := zap.NewNop()
	manager := providers.NewManager("eastmoney", logger, p)
	cacheSvc := cache.NewWithStore(cache.NewMemoryStore(100), logger)
	return New(manager, cacheSvc, logger)
}

func TestGetKlineCachesSuccess(t *testing.T) {
	p := &flakyProvider{name: "eastmoney"}
	store := newTestStore(p)
	ctx := context.Background()

	req := providers.KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 100}
	first := store.GetKline(ctx, req, "")
	if first.Error != "" {
		t.Fatalf("unexpected error: %s", first.Error)
	}
	if first.FromCache {
		t.Errorf("first hit should come from upstream")
	}

	second := store.GetKline(ctx, req, "")
	if !second.FromCache {
		t.Errorf("second hit should come from cache")
	}
	if p.calls != 1 {
		t.Errorf("upstream should be hit once, got %d", p.calls)
	}
	if len(second.Data) != len(first.Data) || second.Source != first.Source {
		t.Errorf("cached result should match the original")
	}
}

func TestGetKlineDistinctParamsDistinctKeys(t *testing.T) {
	p := &flakyProvider{name: "eastmoney"}
	store := newTestStore(p)
	ctx := context.Background()

	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 100}, "")
	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "daily", Limit: 50}, "")
	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "weekly", Limit: 100}, "")

	if p.calls != 3 {
		t.Errorf("each parameter combination should have its own cache entry, upstream hit %d times", p.calls)
	}
}

func TestGetKlineFailureNotCached(t *testing.T) {
	p := &flakyProvider{name: "eastmoney", failures: map[string]bool{"000001.SZ": true}}
	store := newTestStore(p)
	ctx := context.Background()

	req := providers.KlineRequest{TsCode: "000001.SZ", Period: "daily"}
	result := store.GetKline(ctx, req, "")
	if result.Error == "" {
		t.Fatalf("expected failure result")
	}

	// 故障恢复后应重新访问上游而不是命中失败缓存
	p.failures = nil
	result = store.GetKline(ctx, req, "")
	if result.Error != "" || result.FromCache {
		t.Errorf("recovered upstream should serve fresh data, got %+v", result)
	}
}

func TestBatchGetKlineIsolation(t *testing.T) {
	p := &flakyProvider{name: "eastmoney", failures: map[string]bool{"600000.SH": true}}
	store := newTestStore(p)

	results, err := store.BatchGetKline(context.Background(),
		[]string{"000001.SZ", "600000.SH", "000858.SZ"}, "daily", 100, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Errorf("healthy symbols should succeed")
	}
	if results[1].Error == "" {
		t.Errorf("failed symbol should carry its own error")
	}
}

func TestBatchGetKlineLimit(t *testing.T) {
	store := newTestStore(&flakyProvider{name: "eastmoney"})

	codes := make([]string, BatchLimit+1)
	for i := range codes {
		codes[i] = "000001.SZ"
	}
	if _, err := store.BatchGetKline(context.Background(), codes, "daily", 100, ""); err == nil {
		t.Errorf("oversized batch should be rejected")
	}
	if _, err := store.BatchGetKline(context.Background(), nil, "daily", 100, ""); err == nil {
		t.Errorf("empty batch should be rejected")
	}
}

func TestIndexKlineCached(t *testing.T) {
	p := &flakyProvider{name: "eastmoney"}
	store := newTestStore(p)
	ctx := context.Background()

	req := providers.KlineRequest{TsCode: "000300.SH", Period: "daily", Limit: 30}
	first := store.GetIndexKline(ctx, req)
	if first.Error != "" || first.FromCache {
		t.Fatalf("first fetch should come from upstream: %+v", first)
	}

	second := store.GetIndexKline(ctx, req)
	if !second.FromCache {
		t.Errorf("repeated index fetch should come from cache")
	}
	if p.calls != 1 {
		t.Errorf("upstream should be hit once, got %d", p.calls)
	}

	// 指数缓存与个股K线缓存各自独立
	store.GetKline(ctx, req, "")
	if p.calls != 2 {
		t.Errorf("stock kline must not share the index cache entry")
	}
}

func TestIndexKlineFailureNotCached(t *testing.T) {
	p := &flakyProvider{name: "eastmoney", failures: map[string]bool{"000300.SH": true}}
	store := newTestStore(p)
	ctx := context.Background()

	req := providers.KlineRequest{TsCode: "000300.SH", Period: "daily"}
	if result := store.GetIndexKline(ctx, req); result.Error == "" {
		t.Fatalf("expected failure result")
	}

	p.failures = nil
	if result := store.GetIndexKline(ctx, req); result.Error != "" || result.FromCache {
		t.Errorf("recovered upstream should serve fresh data, got %+v", result)
	}
}

func TestClearCache(t *testing.T) {
	p := &flakyProvider{name: "eastmoney"}
	store := newTestStore(p)
	ctx := context.Background()

	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "daily"}, "")
	store.GetKline(ctx, providers.KlineRequest{TsCode: "600000.SH", Period: "daily"}, "")

	if removed := store.ClearCache(ctx, "000001.SZ"); removed != 1 {
		t.Errorf("expected 1 key removed for 000001.SZ, got %d", removed)
	}
	// 600000.SH的缓存仍在
	result := store.GetKline(ctx, providers.KlineRequest{TsCode: "600000.SH", Period: "daily"}, "")
	if !result.FromCache {
		t.Errorf("untouched symbol should still be cached")
	}

	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "daily"}, "")
	if removed := store.ClearCache(ctx, ""); removed != 2 {
		t.Errorf("expected full clear to remove 2 keys, got %d", removed)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(&flakyProvider{name: "eastmoney"})
	ctx := context.Background()

	store.GetKline(ctx, providers.KlineRequest{TsCode: "000001.SZ", Period: "daily"}, "")
	stats := store.Stats(ctx)
	if stats["backend"] != "memory" {
		t.Errorf("backend = %v", stats["backend"])
	}
	if stats["kline_entries"] != 1 {
		t.Errorf("kline_entries = %v", stats["kline_entries"])
	}
}
