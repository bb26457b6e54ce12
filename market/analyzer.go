package market

import "time"

// 多空倾向
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// LatestIndicators 最新一根K线上的指标值，窗口未满时为null
type LatestIndicators struct {
	MA5  *float64 `json:"ma5"`
	MA10 *float64 `json:"ma10"`
	MA20 *float64 `json:"ma20"`
	MA60 *float64 `json:"ma60"`

	Diff *float64 `json:"diff"`
	Dea  *float64 `json:"dea"`
	Macd *float64 `json:"macd"`

	RSI *float64 `json:"rsi"`

	K *float64 `json:"k"`
	D *float64 `json:"d"`
	J *float64 `json:"j"`

	BollUpper  *float64 `json:"boll_upper"`
	BollMiddle *float64 `json:"boll_middle"`
	BollLower  *float64 `json:"boll_lower"`
}

// Analysis 个股技术面分析结果
type Analysis struct {
	TsCode     string           `json:"ts_code"`
	Period     string           `json:"period"`
	Close      float64          `json:"close"`
	PctChg     float64          `json:"pct_chg"`
	BarCount   int              `json:"bar_count"`
	Indicators LatestIndicators `json:"indicators"`
	Signals    Signals          `json:"signals"`
	Trend      string           `json:"trend"`
	AnalyzedAt string           `json:"analyzed_at"`
}

// Analyze 计算指标、判定信号并给出多空倾向
func Analyze(tsCode, period string, bars []Bar) *Analysis {
	ind := ComputeIndicators(bars)
	sig := DetectSignals(bars, ind)

	a := &Analysis{
		TsCode:   tsCode,
		Period:   period,
		BarCount: len(bars),
		Indicators: LatestIndicators{
			MA5:        Last(ind.MA5),
			MA10:       Last(ind.MA10),
			MA20:       Last(ind.MA20),
			MA60:       Last(ind.MA60),
			Diff:       Last(ind.Diff),
			Dea:        Last(ind.Dea),
			Macd:       Last(ind.Macd),
			RSI:        Last(ind.RSI),
			K:          Last(ind.K),
			D:          Last(ind.D),
			J:          Last(ind.J),
			BollUpper:  Last(ind.BollUpper),
			BollMiddle: Last(ind.BollMiddle),
			BollLower:  Last(ind.BollLower),
		},
		Signals:    sig,
		Trend:      trendOf(sig),
		AnalyzedAt: time.Now().Format("2006-01-02 15:04:05"),
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		a.Close = last.Close
		a.PctChg = last.PctChg
	}
	return a
}

// trendOf 简单计票：看多信号加分，看空信号减分
func trendOf(sig Signals) string {
	score := 0
	for _, s := range []string{sig.MA, sig.MACD} {
		switch s {
		case SignalGoldenCross:
			score++
		case SignalDeathCross:
			score--
		}
	}
	for _, s := range []string{sig.RSI, sig.KDJ} {
		switch s {
		case SignalOversold:
			score++
		case SignalOverbought:
			score--
		}
	}
	switch sig.BOLL {
	case SignalLowerBand:
		score++
	case SignalUpperBand:
		score--
	}

	switch {
	case score > 0:
		return TrendBullish
	case score < 0:
		return TrendBearish
	default:
		return TrendNeutral
	}
}
