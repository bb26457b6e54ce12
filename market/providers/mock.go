package providers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"finassist/market"
)

// MockProvider 随机游走的模拟数据源，离线开发与测试用
type MockProvider struct {
	mu         sync.Mutex
	basePrices map[string]float64
	rand       *rand.Rand

	// 可注入错误模拟数据源故障
	Err error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		basePrices: map[string]float64{
			"000001.SZ": 12.50,
			"000858.SZ": 150.00,
			"300750.SZ": 180.00,
			"600000.SH": 7.50,
			"600036.SH": 32.00,
			"600519.SH": 1800.00,
		},
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (mp *MockProvider) Name() string { return "mock" }

func (mp *MockProvider) Priority() int { return 99 }

func (mp *MockProvider) SupportsPeriod(period string) bool {
	return market.IsValidPeriod(period)
}

func (mp *MockProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	if mp.Err != nil {
		return nil, mp.Err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	price := mp.basePrice(req.TsCode)
	days := req.Limit
	if days <= 0 {
		days = 120
	}

	bars := make([]market.Bar, 0, days)
	for i := days; i >= 1; i-- {
		date := time.Now().AddDate(0, 0, -i).Format("20060102")
		changePct := (mp.rand.Float64() - 0.48) * 8
		open := price
		close := price * (1 + changePct/100)
		high := math.Max(open, close) * (1 + mp.rand.Float64()*0.02)
		low := math.Min(open, close) * (1 - mp.rand.Float64()*0.02)
		vol := mp.rand.Float64() * 1e7

		bars = append(bars, market.NewBar(date, open, high, low, close, vol, close*vol, changePct, "mock"))
		price = close
	}
	mp.basePrices[req.TsCode] = price
	return bars, nil
}

func (mp *MockProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	if mp.Err != nil {
		return nil, mp.Err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	base := mp.basePrice(tsCode)
	price := base * (1 + (mp.rand.Float64()-0.5)*0.04)
	change := price - base

	return &market.Quote{
		TsCode:   tsCode,
		Name:     "模拟股票",
		Close:    price,
		Open:     market.Float64(base),
		High:     market.Float64(math.Max(base, price)),
		Low:      market.Float64(math.Min(base, price)),
		PreClose: market.Float64(base),
		Change:   change,
		PctChg:   change / base * 100,
		Vol:      market.Float64(mp.rand.Float64() * 1e7),
		Source:   "mock",
	}, nil
}

func (mp *MockProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	if mp.Err != nil {
		return nil, mp.Err
	}
	return filterStocks(HotStocks(), keyword), nil
}

// basePrice 调用方必须持有锁
func (mp *MockProvider) basePrice(tsCode string) float64 {
	if p, ok := mp.basePrices[tsCode]; ok {
		return p
	}
	p := 10.0 + mp.rand.Float64()*90.0
	mp.basePrices[tsCode] = p
	return p
}
