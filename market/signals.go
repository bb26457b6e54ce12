package market

import "math"

// 交易信号判定
// 交叉类信号要求严格翻转：当前值越过且前一值未越过，
// 任一参与值为NaN时信号为neutral

// Signals 最新一根K线上的信号汇总
type Signals struct {
	MA   string `json:"ma"`
	MACD string `json:"macd"`
	RSI  string `json:"rsi"`
	KDJ  string `json:"kdj"`
	BOLL string `json:"boll"`
}

const (
	SignalGoldenCross = "golden_cross"
	SignalDeathCross  = "death_cross"
	SignalOverbought  = "overbought"
	SignalOversold    = "oversold"
	SignalUpperBand   = "touch_upper"
	SignalLowerBand   = "touch_lower"
	SignalNeutral     = "neutral"
)

// DetectSignals 根据指标序列计算最新信号
func DetectSignals(bars []Bar, ind *IndicatorSet) Signals {
	sig := Signals{
		MA:   crossSignal(ind.MA5, ind.MA10),
		MACD: crossSignal(ind.Diff, ind.Dea),
		RSI:  SignalNeutral,
		KDJ:  SignalNeutral,
		BOLL: SignalNeutral,
	}

	if rsi := Last(ind.RSI); rsi != nil {
		if *rsi < 30 {
			sig.RSI = SignalOversold
		} else if *rsi > 70 {
			sig.RSI = SignalOverbought
		}
	}

	k, d := Last(ind.K), Last(ind.D)
	if k != nil && d != nil {
		if *k < 20 && *d < 20 {
			sig.KDJ = SignalOversold
		} else if *k > 80 && *d > 80 {
			sig.KDJ = SignalOverbought
		}
	}

	if len(bars) > 0 {
		close := bars[len(bars)-1].Close
		upper, lower := Last(ind.BollUpper), Last(ind.BollLower)
		if upper != nil && close >= *upper {
			sig.BOLL = SignalUpperBand
		} else if lower != nil && close <= *lower {
			sig.BOLL = SignalLowerBand
		}
	}
	return sig
}

// crossSignal 判断fast/slow序列在最后一根上是否发生金叉或死叉
func crossSignal(fast, slow []float64) string {
	n := len(fast)
	if n < 2 || len(slow) != n {
		return SignalNeutral
	}
	f1, s1 := fast[n-1], slow[n-1]
	f2, s2 := fast[n-2], slow[n-2]
	if math.IsNaN(f1) || math.IsNaN(s1) || math.IsNaN(f2) || math.IsNaN(s2) {
		return SignalNeutral
	}
	if f1 > s1 && f2 <= s2 {
		return SignalGoldenCross
	}
	if f1 < s1 && f2 >= s2 {
		return SignalDeathCross
	}
	return SignalNeutral
}
