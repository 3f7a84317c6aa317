package indicators

import (
	"math"
	"sort"
)

// ========== 基础计算工具 ==========

// SMA 简单移动平均
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	result := make([]float64, len(values)-period+1)
	sum := 0.0

	// 计算第一个 SMA
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	result[0] = sum / float64(period)

	// 滑动计算后续 SMA
	for i := period; i < len(values); i++ {
		sum = sum - values[i-period] + values[i]
		result[i-period+1] = sum / float64(period)
	}

	return result
}

// EMA 指数移动平均
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	result := make([]float64, len(values))
	multiplier := 2.0 / (float64(period) + 1.0)

	// 第一个 EMA 使用 SMA
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	result[period-1] = sum / float64(period)

	// 计算后续 EMA
	for i := period; i < len(values); i++ {
		result[i] = (values[i] * multiplier) + (result[i-1] * (1 - multiplier))
	}

	return result[period-1:]
}

// StdDev 标准差
func StdDev(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	result := make([]float64, len(values)-period+1)

	for i := period - 1; i < len(values); i++ {
		slice := values[i-period+1 : i+1]
		mean := Mean(slice)
		variance := 0.0
		for _, v := range slice {
			diff := v - mean
			variance += diff * diff
		}
		result[i-period+1] = math.Sqrt(variance / float64(period))
	}

	return result
}

// Mean 平均值
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// TrueRange 真实波幅
func TrueRange(high, low, prevClose float64) float64 {
	tr1 := high - low
	tr2 := math.Abs(high - prevClose)
	tr3 := math.Abs(low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}

// TrueRangeSeries 真实波幅序列
func TrueRangeSeries(candles []Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}

	result := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		result[i-1] = TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
	}

	return result
}

// HighestHigh 区间内最高价
func HighestHigh(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if period > len(candles) {
		period = len(candles)
	}
	high := candles[len(candles)-period].High
	for _, c := range candles[len(candles)-period:] {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// LowestLow 区间内最低价
func LowestLow(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if period > len(candles) {
		period = len(candles)
	}
	low := candles[len(candles)-period].Low
	for _, c := range candles[len(candles)-period:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

// Percentile 百分位数
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || p < 0 || p > 100 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PercentileRank 某个值在序列中的百分位（0-100）
func PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	below := 0
	for _, x := range values {
		if x <= v {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}
