package indicators

import (
	"math"
)

// ========== 趋势指标 ==========

// ADX 平均趋向指数
type ADX struct {
	period int
}

// NewADX 创建 ADX 指标
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Name 指标名称
func (a *ADX) Name() string {
	return "ADX"
}

// Period 所需周期数
func (a *ADX) Period() int {
	return a.period*2 + 1
}

// Calculate 计算 ADX
func (a *ADX) Calculate(candles []Candle) []float64 {
	result := a.CalculateMulti(candles)
	if result == nil {
		return nil
	}
	return result["adx"]
}

// CalculateMulti 计算 ADX 及 +DI/-DI
func (a *ADX) CalculateMulti(candles []Candle) map[string][]float64 {
	if len(candles) < a.period*2+1 {
		return nil
	}

	// 计算 +DM, -DM, TR
	plusDM := make([]float64, len(candles)-1)
	minusDM := make([]float64, len(candles)-1)
	tr := make([]float64, len(candles)-1)

	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevHigh := candles[i-1].High
		prevLow := candles[i-1].Low
		prevClose := candles[i-1].Close

		upMove := high - prevHigh
		downMove := prevLow - low

		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}

		tr[i-1] = TrueRange(high, low, prevClose)
	}

	// 平滑 +DM, -DM, TR
	smoothPlusDM := EMA(plusDM, a.period)
	smoothMinusDM := EMA(minusDM, a.period)
	smoothTR := EMA(tr, a.period)

	if smoothPlusDM == nil || smoothMinusDM == nil || smoothTR == nil {
		return nil
	}

	// 计算 +DI, -DI
	length := len(smoothTR)
	plusDI := make([]float64, length)
	minusDI := make([]float64, length)
	dx := make([]float64, length)

	for i := 0; i < length; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
			minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
		}
	}

	// DX 再平滑得到 ADX
	adx := EMA(dx, a.period)
	if adx == nil {
		return nil
	}

	offset := length - len(adx)
	return map[string][]float64{
		"adx":      adx,
		"plus_di":  plusDI[offset:],
		"minus_di": minusDI[offset:],
	}
}

// CurrentADX 获取当前 ADX 值
func (a *ADX) CurrentADX(candles []Candle) float64 {
	adx := a.Calculate(candles)
	if len(adx) == 0 {
		return 0
	}
	return adx[len(adx)-1]
}

// RSI 相对强弱指数（Wilder 平滑）
// 返回序列与输入等长，前 period 个值为 50（中性填充），便于与K线对齐。
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	result := make([]float64, len(values))
	for i := 0; i < period; i++ {
		result[i] = 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsiAt := func(gain, loss float64) float64 {
		if loss == 0 {
			return 100
		}
		rs := gain / loss
		return 100 - 100/(1+rs)
	}

	result[period] = rsiAt(avgGain, avgLoss)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiAt(avgGain, avgLoss)
	}

	return result
}

// EMAOffset 最新收盘价相对 EMA 的偏移百分比（正值在均线上方）
func EMAOffset(candles []Candle, period int) (float64, bool) {
	closes := ClosePrices(candles)
	ema := EMA(closes, period)
	if len(ema) == 0 {
		return 0, false
	}
	last := ema[len(ema)-1]
	if last <= 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - last) / last * 100, true
}
