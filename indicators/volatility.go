package indicators

// ========== 波动率指标 ==========

// ATR 平均真实波幅
type ATR struct {
	period int
}

// NewATR 创建 ATR 指标
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Name 指标名称
func (a *ATR) Name() string {
	return "ATR"
}

// Period 所需周期数
func (a *ATR) Period() int {
	return a.period + 1
}

// Calculate 计算 ATR
func (a *ATR) Calculate(candles []Candle) []float64 {
	if len(candles) < a.period+1 {
		return nil
	}

	tr := TrueRangeSeries(candles)
	if tr == nil {
		return nil
	}

	// EMA 平滑
	return EMA(tr, a.period)
}

// CurrentATR 获取当前 ATR 值
func (a *ATR) CurrentATR(candles []Candle) float64 {
	atr := a.Calculate(candles)
	if len(atr) == 0 {
		return 0
	}
	return atr[len(atr)-1]
}

// ATRPercent 当前 ATR 占最新收盘价的百分比
func ATRPercent(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	if last <= 0 {
		return 0
	}
	atr := NewATR(period).CurrentATR(candles)
	return atr / last * 100
}

// BollingerBands 布林带
type BollingerBands struct {
	period     int
	multiplier float64
}

// NewBollingerBands 创建布林带指标
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{
		period:     period,
		multiplier: multiplier,
	}
}

// Name 指标名称
func (bb *BollingerBands) Name() string {
	return "BollingerBands"
}

// Period 所需周期数
func (bb *BollingerBands) Period() int {
	return bb.period
}

// Calculate 计算中轨
func (bb *BollingerBands) Calculate(candles []Candle) []float64 {
	result := bb.CalculateMulti(candles)
	if result == nil {
		return nil
	}
	return result["middle"]
}

// CalculateMulti 计算上轨、中轨、下轨
func (bb *BollingerBands) CalculateMulti(candles []Candle) map[string][]float64 {
	closes := ClosePrices(candles)
	if len(closes) < bb.period {
		return nil
	}

	middle := SMA(closes, bb.period)
	stdDev := StdDev(closes, bb.period)

	if middle == nil || stdDev == nil {
		return nil
	}

	upper := make([]float64, len(middle))
	lower := make([]float64, len(middle))

	for i := range middle {
		band := bb.multiplier * stdDev[i]
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
	}

	return map[string][]float64{
		"upper":  upper,
		"middle": middle,
		"lower":  lower,
	}
}
