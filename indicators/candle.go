// Package indicators K线类型与技术指标计算
// 提供门控与策略所需的指标（ATR/ADX/EMA/布林带）以及序列对齐校验
package indicators

// Candle K线数据
type Candle struct {
	Time   int64   // 开盘时间戳（Unix 秒）
	Open   float64 // 开盘价
	High   float64 // 最高价
	Low    float64 // 最低价
	Close  float64 // 收盘价
	Volume float64 // 成交量
}

// Indicator 指标接口
type Indicator interface {
	// Name 指标名称
	Name() string
	// Calculate 计算指标值
	Calculate(candles []Candle) []float64
	// Period 计算所需的最小周期数
	Period() int
}

// MultiValueIndicator 多值指标接口（如布林带、ADX 等）
type MultiValueIndicator interface {
	Indicator
	// CalculateMulti 计算多个值
	CalculateMulti(candles []Candle) map[string][]float64
}

// ClosePrices 提取收盘价序列
func ClosePrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Close
	}
	return result
}

// HighPrices 提取最高价序列
func HighPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.High
	}
	return result
}

// LowPrices 提取最低价序列
func LowPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Low
	}
	return result
}
