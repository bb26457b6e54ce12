package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"finassist/cache"
	"finassist/market"
)

// 新浪K线scale参数映射，不支持1分钟线
var sinaScale = map[string]string{
	"5":       "5",
	"15":      "15",
	"30":      "30",
	"60":      "60",
	"daily":   "240",
	"weekly":  "1200",
	"monthly": "7200",
}

// SinaProvider 新浪财经数据源
// 实时接口返回GBK编码，解析前先转UTF-8
type SinaProvider struct {
	client *http.Client
	cache  *cache.Service
	logger *zap.Logger

	quoteBase string
	klineBase string
}

func NewSinaProvider(cacheSvc *cache.Service, logger *zap.Logger) *SinaProvider {
	return &SinaProvider{
		client:    &http.Client{Timeout: 15 * time.Second},
		cache:     cacheSvc,
		logger:    logger,
		quoteBase: "https://hq.sinajs.cn",
		klineBase: "https://finance.sina.com.cn",
	}
}

func (sp *SinaProvider) Name() string { return "sina" }

func (sp *SinaProvider) Priority() int { return 2 }

func (sp *SinaProvider) SupportsPeriod(period string) bool {
	_, ok := sinaScale[period]
	return ok
}

func (sp *SinaProvider) GetBars(ctx context.Context, req KlineRequest) ([]market.Bar, error) {
	scale, ok := sinaScale[req.Period]
	if !ok {
		return nil, ErrPeriodUnsupported
	}
	symbol, err := SinaSymbol(req.TsCode)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Join("akshare_kline_sina", req.TsCode, req.Period, req.StartDate, req.EndDate, strconv.Itoa(req.Limit))
	var cached []market.Bar
	if sp.cache.GetJSON(ctx, cacheKey, &cached) {
		return cached, nil
	}

	datalen := req.Limit
	if datalen <= 0 {
		datalen = 500
	}
	reqURL := fmt.Sprintf("%s/realstock/company/%s/kline.js?callback=dummy&scale=%s&ma=no&datalen=%d",
		sp.klineBase, symbol, scale, datalen)

	body, err := sp.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	dataStr := string(body)
	start := strings.Index(dataStr, "(")
	end := strings.LastIndex(dataStr, ")")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("sina kline: unexpected payload")
	}

	var items []struct {
		Day    string `json:"day"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal([]byte(dataStr[start+1:end]), &items); err != nil {
		return nil, fmt.Errorf("sina kline decode: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyResult
	}

	bars := make([]market.Bar, 0, len(items))
	var prevClose float64
	for _, item := range items {
		open := parseFloat(item.Open)
		high := parseFloat(item.High)
		low := parseFloat(item.Low)
		close := parseFloat(item.Close)
		vol := parseFloat(item.Volume)
		pctChg := 0.0
		if prevClose > 0 {
			pctChg = (close - prevClose) / prevClose * 100
		}
		prevClose = close

		date := item.Day
		b := market.NewBar(date, open, high, low, close, vol, close*vol, pctChg, "sina")
		if !inRange(b.TradeDate, req.StartDate, req.EndDate) {
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, ErrEmptyResult
	}

	sp.cache.SetJSON(ctx, cacheKey, bars, cache.TTLForPeriod(req.Period))
	return bars, nil
}

func (sp *SinaProvider) GetQuote(ctx context.Context, tsCode string) (*market.Quote, error) {
	symbol, err := SinaSymbol(tsCode)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Join("akshare_quote_sina", tsCode)
	var cached market.Quote
	if sp.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	body, err := sp.fetch(ctx, sp.quoteBase+"/list="+symbol)
	if err != nil {
		return nil, err
	}

	// GBK转UTF-8后形如 var hq_str_sh600000="浦发银行,开,昨收,现价,高,低,..."
	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("sina quote gbk decode: %w", err)
	}

	dataStr := string(decoded)
	start := strings.Index(dataStr, `"`)
	end := strings.LastIndex(dataStr, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("sina quote: unexpected payload")
	}
	parts := strings.Split(dataStr[start+1:end], ",")
	if len(parts) < 10 || parts[0] == "" {
		return nil, ErrEmptyResult
	}

	name := strings.TrimSpace(parts[0])
	open := parseFloat(parts[1])
	preClose := parseFloat(parts[2])
	price := parseFloat(parts[3])
	high := parseFloat(parts[4])
	low := parseFloat(parts[5])
	vol := parseFloat(parts[8])
	amount := parseFloat(parts[9])

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
		Amount:   market.Float64(amount),
		Source:   "sina",
	}

	sp.cache.SetJSON(ctx, cacheKey, quote, cache.TTLQuote)
	return quote, nil
}

// ListStocks 新浪没有全量列表接口
func (sp *SinaProvider) ListStocks(ctx context.Context, keyword string) ([]market.StockInfo, error) {
	return nil, ErrNotSupported
}

func (sp *SinaProvider) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn/")

	resp, err := sp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sina status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// inRange 判断纯数字日期是否落在可选的起止范围内
func inRange(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && len(date) >= len(end) && date[:len(end)] > end {
		return false
	}
	return true
}
