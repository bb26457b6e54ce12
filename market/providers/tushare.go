package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/market"
)

// tushare pro的K线接口按周期分API
var tushareAPIs = map[string]string{
	"daily":   "daily",
	"weekly":  "weekly",
	"monthly": "monthly",
}

// TushareProvider tushare pro数据源，仅支持日/周/月线
// 未配置token时股票列表退化为内置热门股
type TushareProvider struct {
	client *http.Client
	cache  *cache.Service
	logger *zap.Logger
	token  string

	apiBase string
}

func NewTushareProvider(token string, cacheSvc *cache.Service, logger *zap.Logger) *TushareProvider {
	return &TushareProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   cacheSvc,
		logger:  logger,
		token:   token,
		apiBase: "http://api.tushare.pro",
	}
}

func (tp *TushareProvider) Name() string { return "tushare" }

func (tp *TushareProvider) Priority() int { return 3 }

func (tp *TushareProvider) SupportsPeriod(period string) bool {
	_, ok := tushareAPIs[period]
	return ok
}

func (tp *TushareProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	apiName, ok := tushareAPIs[req.Period]
	if !ok {
		return nil, ErrPeriodUnsupported
	}
	if tp.token == "" {
		return nil, fmt.Errorf("tushare token not configured")
	}

	cacheKey := cache.Join("tushare_kline", req.TsCode, req.Period, req.StartDate, req.EndDate, strconv.Itoa(req.Limit))
	var cached []market.Bar
	if tp.cache.GetJSON(ctx, cacheKey, &cached) {
		return cached, nil
	}

	params := map[string]string{"ts_code": req.TsCode}
	if req.StartDate != "" {
		params["start_date"] = req.StartDate
	}
	if req.EndDate != "" {
		params["end_date"] = req.EndDate
	}

	data, err := tp.call(ctx, apiName, params, "ts_code,trade_date,open,high,low,close,vol,amount,pct_chg")
	if err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return nil, ErrEmptyResult
	}

	idx := data.fieldIndex()
	bars := make([]market.Bar, 0, len(data.Items))
	for _, item := range data.Items {
		bars = append(bars, market.NewBar(
			data.str(item, idx["trade_date"]),
			data.num(item, idx["open"]),
			data.num(item, idx["high"]),
			data.num(item, idx["low"]),
			data.num(item, idx["close"]),
			data.num(item, idx["vol"]),
			data.num(item, idx["amount"]),
			data.num(item, idx["pct_chg"]),
			"tushare",
		))
	}

	// tushare按日期倒序返回
	market.SortBarsByDate(bars)
	if req.Limit > 0 && len(bars) > req.Limit {
		bars = bars[len(bars)-req.Limit:]
	}

	tp.cache.SetJSON(ctx, cacheKey, bars, cache.TTLForPeriod(req.Period))
	return bars, nil
}

// GetQuote 用最近两根日线合成行情快照，缓存时间比实时源更长
func (tp *TushareProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	cacheKey := cache.Join("tushare_realtime", tsCode)
	var cached market.Quote
	if tp.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	bars, err := tp.GetBars(ctx, KlineRequest{TsCode: tsCode, Period: "daily", Limit: 2})
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]

	quote := &market.Quote{
		TsCode: tsCode,
		Close:  last.Close,
		Open:   market.Float64(last.Open),
		High:   market.Float64(last.High),
		Low:    market.Float64(last.Low),
		PctChg: last.PctChg,
		Vol:    market.Float64(last.Vol),
		Amount: market.Float64(last.Amount),
		Source: "tushare",
	}
	if len(bars) >= 2 {
		prev := bars[len(bars)-2]
		quote.PreClose = market.Float64(prev.Close)
		quote.Change = last.Close - prev.Close
	}

	tp.cache.SetJSON(ctx, cacheKey, quote, 30*time.Second)
	return quote, nil
}

func (tp *TushareProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	if tp.token == "" {
		return filterStocks(HotStocks(), keyword), nil
	}

	cacheKey := cache.Join("tushare_stock_list", "all")
	var cached []market.StockInfo
	if tp.cache.GetJSON(ctx, cacheKey, &cached) {
		return filterStocks(cached, keyword), nil
	}

	data, err := tp.call(ctx, "stock_basic", map[string]string{"list_status": "L"},
		"ts_code,symbol,name,area,industry,market,list_date")
	if err != nil {
		tp.logger.Warn("tushare stock_basic failed, using builtin hot list", zap.Error(err))
		return filterStocks(HotStocks(), keyword), nil
	}
	if len(data.Items) == 0 {
		return filterStocks(HotStocks(), keyword), nil
	}

	idx := data.fieldIndex()
	stocks := make([]market.StockInfo, 0, len(data.Items))
	for _, item := range data.Items {
		stocks = append(stocks, market.StockInfo{
			TsCode:   data.str(item, idx["ts_code"]),
			Symbol:   data.str(item, idx["symbol"]),
			Name:     data.str(item, idx["name"]),
			Area:     data.str(item, idx["area"]),
			Industry: data.str(item, idx["industry"]),
			Market:   data.str(item, idx["market"]),
			ListDate: data.str(item, idx["list_date"]),
		})
	}

	tp.cache.SetJSON(ctx, cacheKey, stocks, cache.TTLStockList)
	return filterStocks(stocks, keyword), nil
}

// tushareData pro接口返回的列式数据
type tushareData struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

func (d *tushareData) fieldIndex() map[string]int {
	idx := make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		idx[f] = i
	}
	return idx
}

func (d *tushareData) str(item []interface{}, i int) string {
	if i < 0 || i >= len(item) {
		return ""
	}
	s, _ := item[i].(string)
	return s
}

func (d *tushareData) num(item []interface{}, i int) float64 {
	if i < 0 || i >= len(item) {
		return 0
	}
	switch v := item[i].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func (tp *TushareProvider) call(ctx context.Context, apiName string, params map[string]string, fields string) (*tushareData, error) {
	payload := map[string]interface{}{
		"api_name": apiName,
		"token":    tp.token,
		"params":   params,
		"fields":   fields,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tp.apiBase, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Code int         `json:"code"`
		Msg  string      `json:"msg"`
		Data tushareData `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("tushare decode: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("tushare api %s: %s", apiName, result.Msg)
	}
	return &result.Data, nil
}

// HotStocks 内置热门股清单，tushare不可用时的兜底数据
func HotStocks() []market.StockInfo {
	list := []struct {
		code, name, industry string
	}{
		{"000001.SZ", "平安银行", "银行"},
		{"000002.SZ", "万科A", "房地产"},
		{"000333.SZ", "美的集团", "家电"},
		{"000651.SZ", "格力电器", "家电"},
		{"000858.SZ", "五粮液", "白酒"},
		{"002415.SZ", "海康威视", "电子"},
		{"002594.SZ", "比亚迪", "汽车"},
		{"300059.SZ", "东方财富", "证券"},
		{"300750.SZ", "宁德时代", "电池"},
		{"600000.SH", "浦发银行", "银行"},
		{"600030.SH", "中信证券", "证券"},
		{"600036.SH", "招商银行", "银行"},
		{"600276.SH", "恒瑞医药", "医药"},
		{"600519.SH", "贵州茅台", "白酒"},
		{"600887.SH", "伊利股份", "食品"},
		{"600900.SH", "长江电力", "电力"},
		{"601012.SH", "隆基绿能", "光伏"},
		{"601318.SH", "中国平安", "保险"},
		{"601398.SH", "工商银行", "银行"},
		{"601888.SH", "中国中免", "免税"},
	}
	stocks := make([]market.StockInfo, 0, len(list))
	for _, s := range list {
		code := s.code[:6]
		marketName := "沪市"
		if s.code[7:] == "SZ" {
			marketName = "深市"
		}
		stocks = append(stocks, market.StockInfo{
			TsCode:   s.code,
			Symbol:   code,
			Name:     s.name,
			Industry: s.industry,
			Market:   marketName,
		})
	}
	return stocks
}
