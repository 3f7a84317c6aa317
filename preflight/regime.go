package preflight

import (
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
)

// Regime 市场状态
type Regime string

const (
	RegimeStrongTrend Regime = "strong-trend"
	RegimeWeakTrend   Regime = "weak-trend"
	RegimeRange       Regime = "range"
	RegimeChop        Regime = "chop"
	RegimeUnknown     Regime = "unknown"
)

// 趋势方向
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// TrendInfo 高周期趋势信息
type TrendInfo struct {
	Direction    string  // bullish / bearish / neutral
	EMAOffsetPct float64 // 价格相对高周期EMA的偏移百分比
	ADX          float64 // 趋势强度
}

// EMA 偏移超过该幅度才认定方向（避免贴线抖动）
const trendOffsetThreshold = 0.1

// AnalyzeHTF 从高周期K线推导趋势方向与市场状态
// 趋势：价格相对长周期EMA的偏移给方向，ADX 给强度。
// 状态：ADX 与 ATR 历史百分位联合判定；低ADX叠加低波动为 chop。
func AnalyzeHTF(candles []indicators.Candle, emaPeriod, adxPeriod int) (*TrendInfo, Regime) {
	trend := &TrendInfo{Direction: TrendNeutral}

	offset, ok := indicators.EMAOffset(candles, emaPeriod)
	if !ok {
		return trend, RegimeUnknown
	}
	trend.EMAOffsetPct = offset

	adxSeries := indicators.NewADX(adxPeriod).Calculate(candles)
	if len(adxSeries) == 0 {
		return trend, RegimeUnknown
	}
	trend.ADX = adxSeries[len(adxSeries)-1]

	if offset > trendOffsetThreshold {
		trend.Direction = TrendBullish
	} else if offset < -trendOffsetThreshold {
		trend.Direction = TrendBearish
	}

	return trend, classifyRegime(candles, trend.ADX, adxPeriod)
}

// classifyRegime 判定市场状态
func classifyRegime(candles []indicators.Candle, adx float64, atrPeriod int) Regime {
	atrSeries := indicators.NewATR(atrPeriod).Calculate(candles)
	atrRank := 50.0
	if len(atrSeries) > 1 {
		atrRank = indicators.PercentileRank(atrSeries[:len(atrSeries)-1], atrSeries[len(atrSeries)-1])
	}

	switch {
	case adx >= 30:
		return RegimeStrongTrend
	case adx >= 20:
		return RegimeWeakTrend
	case adx < 15 && atrRank < 25:
		// 无趋势且波动萎缩：不可交易
		return RegimeChop
	default:
		return RegimeRange
	}
}
