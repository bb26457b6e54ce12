package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/market"
)

// 东方财富K线周期映射
var eastmoneyKlt = map[string]string{
	"1":       "1",
	"5":       "5",
	"15":      "15",
	"30":      "30",
	"60":      "60",
	"daily":   "101",
	"weekly":  "102",
	"monthly": "103",
}

// EastmoneyProvider 东方财富数据源，唯一支持分钟级K线的数据源
type EastmoneyProvider struct {
	client *http.Client
	cache  *cache.Service
	logger *zap.Logger

	// 测试时可替换为httptest地址
	klineBase string
	quoteBase string
	listBase  string
}

func NewEastmoneyProvider(cacheSvc *cache.Service, logger *zap.Logger) *EastmoneyProvider {
	return &EastmoneyProvider{
		client:    &http.Client{Timeout: 15 * time.Second},
		cache:     cacheSvc,
		logger:    logger,
		klineBase: "https://push2his.eastmoney.com",
		quoteBase: "https://push2.eastmoney.com",
		listBase:  "https://push2.eastmoney.com",
	}
}

func (ep *EastmoneyProvider) Name() string { return "eastmoney" }

func (ep *EastmoneyProvider) Priority() int { return 1 }

func (ep *EastmoneyProvider) SupportsPeriod(period string) bool {
	_, ok := eastmoneyKlt[period]
	return ok
}

func (ep *EastmoneyProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	klt, ok := eastmoneyKlt[req.Period]
	if !ok {
		return nil, ErrPeriodUnsupported
	}
	secid, err := EastmoneySecID(req.TsCode)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Join("akshare_kline_em", req.TsCode, req.Period, req.StartDate, req.EndDate, strconv.Itoa(req.Limit))
	var cached []market.Bar
	if ep.cache.GetJSON(ctx, cacheKey, &cached) {
		return cached, nil
	}

	beg := req.StartDate
	if beg == "" {
		beg = "0"
	}
	end := req.EndDate
	if end == "" {
		end = "20500101"
	}
	lmt := req.Limit
	if lmt <= 0 {
		lmt = 500
	}

	q := url.Values{}
	q.Set("secid", secid)
	q.Set("klt", klt)
	q.Set("fqt", "1")
	q.Set("beg", beg)
	q.Set("end", end)
	q.Set("lmt", strconv.Itoa(lmt))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	reqURL := ep.klineBase + "/api/qt/stock/kline/get?" + q.Encode()

	body, err := ep.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("eastmoney kline decode: %w", err)
	}
	if len(result.Data.Klines) == 0 {
		return nil, ErrEmptyResult
	}

	bars := make([]market.Bar, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		// date,open,close,high,low,volume,amount,amplitude,pct_chg,chg,turnover
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		open := parseFloat(parts[1])
		close := parseFloat(parts[2])
		high := parseFloat(parts[3])
		low := parseFloat(parts[4])
		vol := parseFloat(parts[5])
		amount := parseFloat(parts[6])
		pctChg := 0.0
		if len(parts) >= 9 {
			pctChg = parseFloat(parts[8])
		}
		bars = append(bars, market.NewBar(parts[0], open, high, low, close, vol, amount, pctChg, "eastmoney"))
	}
	if len(bars) == 0 {
		return nil, ErrEmptyResult
	}

	ep.cache.SetJSON(ctx, cacheKey, bars, cache.TTLForPeriod(req.Period))
	return bars, nil
}

func (ep *EastmoneyProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	secid, err := EastmoneySecID(tsCode)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Join("akshare_quote_em", tsCode)
	var cached market.Quote
	if ep.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	q := url.Values{}
	q.Set("secid", secid)
	q.Set("invt", "2")
	q.Set("fltt", "2")
	q.Set("fields", "f43,f44,f45,f46,f47,f48,f58,f60,f168,f169,f170")
	reqURL := ep.quoteBase + "/api/qt/stock/get?" + q.Encode()

	body, err := ep.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data *struct {
			F43  *float64 `json:"f43"`  // 最新价
			F44  *float64 `json:"f44"`  // 最高
			F45  *float64 `json:"f45"`  // 最低
			F46  *float64 `json:"f46"`  // 今开
			F47  *float64 `json:"f47"`  // 成交量
			F48  *float64 `json:"f48"`  // 成交额
			F58  string   `json:"f58"`  // 名称
			F60  *float64 `json:"f60"`  // 昨收
			F168 *float64 `json:"f168"` // 换手率
			F169 *float64 `json:"f169"` // 涨跌额
			F170 *float64 `json:"f170"` // 涨跌幅
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("eastmoney quote decode: %w", err)
	}
	data := result.Data
	if data == nil || data.F43 == nil {
		return nil, ErrEmptyResult
	}

	quote := &market.Quote{
		TsCode:   tsCode,
		Name:     data.F58,
		Close:    *data.F43,
		Open:     data.F46,
		High:     data.F44,
		Low:      data.F45,
		PreClose: data.F60,
		Vol:      data.F47,
		Amount:   data.F48,
		Turnover: data.F168,
		Source:   "eastmoney",
	}
	if data.F169 != nil {
		quote.Change = *data.F169
	}
	if data.F170 != nil {
		quote.PctChg = *data.F170
	}

	ep.cache.SetJSON(ctx, cacheKey, quote, cache.TTLQuote)
	return quote, nil
}

func (ep *EastmoneyProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	cacheKey := cache.Join("akshare_stock_list", "em")
	var cached []market.StockInfo
	if ep.cache.GetJSON(ctx, cacheKey, &cached) {
		return filterStocks(cached, keyword), nil
	}

	q := url.Values{}
	q.Set("pn", "1")
	q.Set("pz", "6000")
	q.Set("po", "1")
	q.Set("fid", "f3")
	q.Set("fs", "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23")
	q.Set("fields", "f2,f3,f12,f13,f14")
	reqURL := ep.listBase + "/api/qt/clist/get?" + q.Encode()

	body, err := ep.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data *struct {
			Diff []struct {
				F2  *float64 `json:"f2"`  // 最新价
				F3  *float64 `json:"f3"`  // 涨跌幅
				F12 string   `json:"f12"` // 代码
				F13 int      `json:"f13"` // 市场：0深 1沪
				F14 string   `json:"f14"` // 名称
			} `json:"diff"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("eastmoney list decode: %w", err)
	}
	if result.Data == nil || len(result.Data.Diff) == 0 {
		return nil, ErrEmptyResult
	}

	stocks := make([]market.StockInfo, 0, len(result.Data.Diff))
	for _, item := range result.Data.Diff {
		exchange := ".SZ"
		marketName := "深市"
		if item.F13 == 1 {
			exchange = ".SH"
			marketName = "沪市"
		}
		stocks = append(stocks, market.StockInfo{
			TsCode: item.F12 + exchange,
			Symbol: item.F12,
			Name:   item.F14,
			Market: marketName,
			Price:  item.F2,
			PctChg: item.F3,
		})
	}

	ep.cache.SetJSON(ctx, cacheKey, stocks, cache.TTLStockList)
	return filterStocks(stocks, keyword), nil
}

func (ep *EastmoneyProvider) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := ep.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// filterStocks 按代码或名称关键字过滤
func filterStocks(stocks []market.StockInfo, keyword string) []market.StockInfo {
	if keyword == "" {
		return stocks
	}
	var out []market.StockInfo
	for _, s := range stocks {
		if strings.Contains(s.TsCode, keyword) || strings.Contains(s.Symbol, keyword) || strings.Contains(s.Name, keyword) {
			out = append(out, s)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
