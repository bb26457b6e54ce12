package market

import "math"

// 技术指标计算
// 所有序列函数返回与输入等长的切片，窗口未满的位置为NaN，
// 序列化前由调用方转换为null

// CalculateMA calculates the simple moving average series.
func CalculateMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA calculates the exponential moving average series.
// 首值用第一个价格作种子，与pandas ewm(adjust=False)一致
func CalculateEMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// CalculateMACD calculates the MACD indicator series (DIFF, DEA, MACD).
// 标准参数12/26/9，MACD柱为DIFF-DEA
func CalculateMACD(closes []float64) (diff, dea, macd []float64) {
	ema12 := CalculateEMA(closes, 12)
	ema26 := CalculateEMA(closes, 26)

	diff = nanSeries(len(closes))
	for i := range closes {
		diff[i] = ema12[i] - ema26[i]
	}
	dea = CalculateEMA(diff, 9)

	macd = nanSeries(len(closes))
	for i := range closes {
		macd[i] = diff[i] - dea[i]
	}
	return diff, dea, macd
}

// CalculateRSI calculates the Relative Strength Index series using
// Wilder smoothing: the first average is a simple mean of the first
// period gains/losses, after that avg = (avg*(n-1)+new)/n.
func CalculateRSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain := 0.0
		loss := 0.0
		if diff >= 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// 连续上涨时avgLoss为0，RSI直接取100
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// CalculateKDJ calculates the KDJ stochastic oscillator series.
// RSV窗口内最高价等于最低价时取50，K/D用首个RSV做种子，
// 之后按2/3旧值+1/3新值平滑，J=3K-2D
func CalculateKDJ(highs, lows, closes []float64, period int) (k, d, j []float64) {
	n := len(closes)
	k = nanSeries(n)
	d = nanSeries(n)
	j = nanSeries(n)
	if period <= 0 || n < period || len(highs) != n || len(lows) != n {
		return k, d, j
	}

	prevK := math.NaN()
	prevD := math.NaN()
	for i := period - 1; i < n; i++ {
		hh := highs[i-period+1]
		ll := lows[i-period+1]
		for m := i - period + 2; m <= i; m++ {
			if highs[m] > hh {
				hh = highs[m]
			}
			if lows[m] < ll {
				ll = lows[m]
			}
		}
		rsv := 50.0
		if hh != ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}
		if math.IsNaN(prevK) {
			prevK = rsv
			prevD = rsv
		} else {
			prevK = prevK*2/3 + rsv/3
			prevD = prevD*2/3 + prevK/3
		}
		k[i] = prevK
		d[i] = prevD
		j[i] = 3*prevK - 2*prevD
	}
	return k, d, j
}

// CalculateBOLL calculates the Bollinger Bands series (upper, middle, lower).
// 中轨为period日均线，上下轨偏移width倍总体标准差
func CalculateBOLL(closes []float64, period int, width float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper = nanSeries(n)
	lower = nanSeries(n)
	middle = CalculateMA(closes, period)
	if period <= 0 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		mean := middle[i]
		sumSq := 0.0
		for m := i - period + 1; m <= i; m++ {
			dev := closes[m] - mean
			sumSq += dev * dev
		}
		std := math.Sqrt(sumSq / float64(period))
		upper[i] = mean + width*std
		lower[i] = mean - width*std
	}
	return upper, middle, lower
}

// IndicatorSet 全量技术指标序列
type IndicatorSet struct {
	MA5  []float64
	MA10 []float64
	MA20 []float64
	MA60 []float64

	Diff []float64
	Dea  []float64
	Macd []float64

	RSI []float64

	K []float64
	D []float64
	J []float64

	BollUpper  []float64
	BollMiddle []float64
	BollLower  []float64
}

// ComputeIndicators 对一组K线计算全部指标
func ComputeIndicators(bars []Bar) *IndicatorSet {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	set := &IndicatorSet{
		MA5:  CalculateMA(closes, 5),
		MA10: CalculateMA(closes, 10),
		MA20: CalculateMA(closes, 20),
		MA60: CalculateMA(closes, 60),
		RSI:  CalculateRSI(closes, 14),
	}
	set.Diff, set.Dea, set.Macd = CalculateMACD(closes)
	set.K, set.D, set.J = CalculateKDJ(highs, lows, closes, 9)
	set.BollUpper, set.BollMiddle, set.BollLower = CalculateBOLL(closes, 20, 2)
	return set
}

// Last 返回序列最后一个有效值，NaN或空序列返回nil
func Last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// NullableSeries 将NaN替换为nil，用于JSON输出
func NullableSeries(series []float64) []*float64 {
	out := make([]*float64, len(series))
	for i, v := range series {
		if !math.IsNaN(v) {
			val := v
			out[i] = &val
		}
	}
	return out
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
