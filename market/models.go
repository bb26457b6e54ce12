// Package market 定义统一的行情数据模型与技术指标计算
package market

import (
	"sort"
	"strings"
)

// Bar 统一K线数据格式
//
// trade_date/date 与 vol/volume 为刻意的双字段输出，
// 历史上两种命名的消费端都存在，序列化时同时给出
type Bar struct {
	TradeDate string  `json:"trade_date"`
	Date      string  `json:"date"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Vol       float64 `json:"vol"`
	Volume    float64 `json:"volume"`
	Amount    float64 `json:"amount"`
	PctChg    float64 `json:"pct_chg"`
	Source    string  `json:"source"`
}

// NewBar builds a canonical Bar: the date keeps digits only and every
// numeric field is concrete (missing upstream values arrive as 0), so
// the indicator engine can assume a dense numeric series.
func NewBar(date string, open, high, low, close, vol, amount, pctChg float64, source string) Bar {
	d := DigitsOnly(date)
	return Bar{
		TradeDate: d,
		Date:      d,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Vol:       vol,
		Volume:    vol,
		Amount:    amount,
		PctChg:    pctChg,
		Source:    source,
	}
}

// DigitsOnly 去除日期中的分隔符，保证date字段只含数字
// "2026-08-22" -> "20260822"，"2026-08-22 14:30" -> "202608221430"
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SortBarsByDate 按交易日升序排列
func SortBarsByDate(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TradeDate < bars[j].TradeDate
	})
}

// Quote 实时行情快照
// ts_code与close为必填，其余字段上游缺失时为null
type Quote struct {
	TsCode   string   `json:"ts_code"`
	Name     string   `json:"name"`
	Close    float64  `json:"close"`
	Open     *float64 `json:"open"`
	High     *float64 `json:"high"`
	Low      *float64 `json:"low"`
	PreClose *float64 `json:"pre_close"`
	Change   float64  `json:"change"`
	PctChg   float64  `json:"pct_chg"`
	Vol      *float64 `json:"vol"`
	Amount   *float64 `json:"amount"`
	Turnover *float64 `json:"turnover"`
	Source   string   `json:"source"`
}

// StockInfo 股票基本信息
type StockInfo struct {
	TsCode   string   `json:"ts_code"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Area     string   `json:"area,omitempty"`
	Industry string   `json:"industry,omitempty"`
	Market   string   `json:"market,omitempty"`
	ListDate string   `json:"list_date,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	PctChg   *float64 `json:"pct_chg,omitempty"`
}

// KlineResult 数据源管理器/存储层的统一K线响应
// 所有数据源都失败时Data为空且Error携带原因，调用方不会收到error
type KlineResult struct {
	TsCode    string `json:"ts_code"`
	Source    string `json:"source"`
	Period    string `json:"period"`
	Data      []Bar  `json:"data"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

// 支持的K线周期
var validPeriods = map[string]struct{}{
	"1": {}, "5": {}, "15": {}, "30": {}, "60": {},
	"daily": {}, "weekly": {}, "monthly": {},
}

// IsValidPeriod 判断周期是否合法
func IsValidPeriod(period string) bool {
	_, ok := validPeriods[period]
	return ok
}

// IsIntraday 判断是否为分钟级周期
func IsIntraday(period string) bool {
	switch period {
	case "1", "5", "15", "30", "60":
		return true
	}
	return false
}

// Float64 returns a pointer to v, for the nullable quote fields.
func Float64(v float64) *float64 { return &v }
