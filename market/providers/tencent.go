package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"finassist/cache"
	"finassist/market"
)

// TencentProvider 腾讯行情数据源，只提供实时快照兜底
// K线与列表接口稳定性差，不参与K线失败切换
type TencentProvider struct {
	client *http.Client
	cache  *cache.Service
	logger *zap.Logger

	quoteBase string
}

func NewTencentProvider(cacheSvc *cache.Service, logger *zap.Logger) *TencentProvider {
	return &TencentProvider{
		client:    &http.Client{Timeout: 15 * time.Second},
		cache:     cacheSvc,
		logger:    logger,
		quoteBase: "https://qt.gtimg.cn",
	}
}

func (tp *TencentProvider) Name() string { return "tencent" }

func (tp *TencentProvider) Priority() int { return 4 }

func (tp *TencentProvider) SupportsPeriod(period string) bool { return false }

func (tp *TencentProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	return nil, ErrPeriodUnsupported
}

func (tp *TencentProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	return nil, ErrNotSupported
}

func (tp *TencentProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	symbol, err := SinaSymbol(tsCode) // 腾讯与新浪同用sh/sz前缀
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Join("tencent_quote", tsCode)
	var cached market.Quote
	if tp.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", tp.quoteBase+"/q="+symbol, nil)
	if err != nil {
		return nil, err
	}
	resp, err := tp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("tencent quote gbk decode: %w", err)
	}

	dataStr := string(decoded)
	start := strings.Index(dataStr, `"`)
	end := strings.LastIndex(dataStr, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("tencent quote: unexpected payload")
	}
	parts := strings.Split(dataStr[start+1:end], "~")
	if len(parts) < 40 {
		return nil, ErrEmptyResult
	}

	name := strings.TrimSpace(parts[1])
	price := parseFloat(parts[3])
	preClose := parseFloat(parts[4])
	open := parseFloat(parts[5])
	vol := parseFloat(parts[6])
	high := parseFloat(parts[33])
	low := parseFloat(parts[34])

	change := price - preClose
	pctChg := 0.0
	if preClose > 0 {
		pctChg = change / preClose * 100
	}

	quote := &market.Quote{
		TsCode:   tsCode,
		Name:     name,
		Close:    price,
		Open:     market.Float64(open),
		High:     market.Float64(high),
		Low:      market.Float64(low),
		PreClose: market.Float64(preClose),
		Change:   change,
		PctChg:   pctChg,
		Vol:      market.Float64(vol),
		Source:   "tencent",
	}

	tp.cache.SetJSON(ctx, cacheKey, quote, cache.TTLQuote)
	return quote, nil
}
