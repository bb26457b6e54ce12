package providers

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"finassist/market"
)

type stubProvider struct {
	name     string
	priority int
	bars     []market.Bar
	quote    *market.Quote
	err      error
	calls    int
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Priority() int { return s.priority }

func (s *stubProvider) SupportsPeriod(period string) bool {
	if s.name == "tushare" {
		return !market.IsIntraday(period)
	}
	return market.IsValidPeriod(period)
}

func (s *stubProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

func (s *stubProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.quote == nil {
		return nil, ErrEmptyResult
	}
	return s.quote, nil
}

func (s *stubProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return HotStocks(), nil
}

func someBars(source string) []market.Bar {
	return []market.Bar{market.NewBar("20260102", 10, 11, 9, 10.5, 1000, 10500, 0.5, source)}
}

func TestManagerFailover(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1, err: errors.New("timeout")}
	sina := &stubProvider{name: "sina", priority: 2, bars: someBars("sina")}
	m := NewManager("eastmoney", zap.NewNop(), em, sina)

	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"})
	if result.Error != "" {
		t.Fatalf("fallback should succeed, got error %q", result.Error)
	}
	if result.Source != "sina" {
		t.Errorf("expected sina to win after eastmoney failed, got %q", result.Source)
	}
	if em.calls != 1 {
		t.Errorf("eastmoney should have been tried first")
	}
}

func TestManagerEmptyResultTriggersFallback(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1} // 空数据
	sina := &stubProvider{name: "sina", priority: 2, bars: someBars("sina")}
	m := NewManager("eastmoney", zap.NewNop(), em, sina)

	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"})
	if result.Source != "sina" {
		t.Errorf("empty result should not win, got source %q", result.Source)
	}
}

func TestManagerAllFail(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1, err: errors.New("down")}
	sina := &stubProvider{name: "sina", priority: 2, err: errors.New("down too")}
	m := NewManager("eastmoney", zap.NewNop(), em, sina)

	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"})
	if result.Error == "" {
		t.Fatalf("all-fail should surface an error message")
	}
	if result.Data == nil || len(result.Data) != 0 {
		t.Errorf("all-fail should return an empty (non-nil) data slice")
	}
}

func TestManagerInvalidPeriod(t *testing.T) {
	m := NewManager("eastmoney", zap.NewNop(), &stubProvider{name: "eastmoney", priority: 1})
	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "hourly"})
	if result.Error == "" {
		t.Errorf("invalid period should be rejected")
	}
}

func TestManagerIntradayForcesEastmoney(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1, bars: someBars("eastmoney")}
	sina := &stubProvider{name: "sina", priority: 2, bars: someBars("sina")}
	tushare := &stubProvider{name: "tushare", priority: 3, bars: someBars("tushare")}
	m := NewManager("sina", zap.NewNop(), em, sina, tushare)

	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "5"})
	if result.Source != "eastmoney" {
		t.Errorf("minute periods should start from eastmoney, got %q", result.Source)
	}

	// tushare不支持分钟线，即使东财与新浪都挂了也不应被调用
	em.err = errors.New("down")
	sina.err = errors.New("down")
	tushare.calls = 0
	result = m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "5"})
	if result.Error == "" {
		t.Errorf("expected failure when only minute-capable sources are down")
	}
	if tushare.calls != 0 {
		t.Errorf("tushare must not be asked for minute bars")
	}
}

func TestManagerDefaultSourceFirst(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1, bars: someBars("eastmoney")}
	tushare := &stubProvider{name: "tushare", priority: 3, bars: someBars("tushare")}
	m := NewManager("eastmoney", zap.NewNop(), em, tushare)

	if err := m.SetDefaultSource("tushare"); err != nil {
		t.Fatal(err)
	}
	result := m.GetKline(context.Background(), KlineRequest{TsCode: "000001.SZ", Period: "daily"})
	if result.Source != "tushare" {
		t.Errorf("default source should be tried first, got %q", result.Source)
	}

	if err := m.SetDefaultSource("unknown"); err != ErrProviderNotFound {
		t.Errorf("unknown source should be rejected, got %v", err)
	}
}

func TestManagerGetQuoteFailover(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1, err: errors.New("down")}
	sina := &stubProvider{name: "sina", priority: 2, quote: &market.Quote{TsCode: "000001.SZ", Close: 12.5, Source: "sina"}}
	m := NewManager("eastmoney", zap.NewNop(), em, sina)

	quote, err := m.GetQuote(context.Background(), "000001.SZ")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Source != "sina" {
		t.Errorf("expected sina quote, got %q", quote.Source)
	}

	sina.err = errors.New("down too")
	if _, err := m.GetQuote(context.Background(), "000001.SZ"); err == nil {
		t.Errorf("all-fail quote should return an error")
	}
}

func TestManagerSources(t *testing.T) {
	em := &stubProvider{name: "eastmoney", priority: 1}
	tushare := &stubProvider{name: "tushare", priority: 3}
	m := NewManager("eastmoney", zap.NewNop(), tushare, em)

	infos := m.Sources()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(infos))
	}
	if infos[0].Name != "eastmoney" || !infos[0].IsDefault || !infos[0].SupportsMinute {
		t.Errorf("eastmoney descriptor wrong: %+v", infos[0])
	}
	if infos[1].Name != "tushare" || infos[1].SupportsMinute {
		t.Errorf("tushare descriptor wrong: %+v", infos[1])
	}
}
