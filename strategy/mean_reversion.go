package strategy

import (
	"fmt"
	"math"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
)

// MeanReversionStrategy 均值回归策略
// 价格触及布林带外沿且 RSI 进入超买/超卖区时，向中轨方向做回归。
type MeanReversionStrategy struct {
	id      string
	minBars int

	bandPeriod int
	rsiPeriod  int
	overbought float64
	oversold   float64
	baseScore  float64
}

// NewMeanReversionStrategy 从配置创建均值回归策略
func NewMeanReversionStrategy(sc *config.StrategyConfig) *MeanReversionStrategy {
	mrs := &MeanReversionStrategy{
		id:         sc.ID,
		minBars:    sc.MinBars,
		bandPeriod: int(paramOr(sc.Params, "band_period", 20)),
		rsiPeriod:  int(paramOr(sc.Params, "rsi_period", 14)),
		overbought: paramOr(sc.Params, "overbought", 70),
		oversold:   paramOr(sc.Params, "oversold", 30),
		baseScore:  paramOr(sc.Params, "base_score", 55),
	}
	if mrs.minBars <= 0 {
		mrs.minBars = mrs.bandPeriod * 2
	}
	return mrs
}

// ID 返回策略ID
func (mrs *MeanReversionStrategy) ID() string {
	return mrs.id
}

// Type 返回策略类型
func (mrs *MeanReversionStrategy) Type() string {
	return "mean_reversion"
}

// RequiredIndicators 返回必需的指标序列名称
func (mrs *MeanReversionStrategy) RequiredIndicators() []string {
	return []string{"bb_upper", "bb_middle", "bb_lower", "rsi"}
}

// MinBars 返回评估所需的最少K线数量
func (mrs *MeanReversionStrategy) MinBars() int {
	return mrs.minBars
}

// Evaluate 评估最新K线是否触发回归信号
func (mrs *MeanReversionStrategy) Evaluate(data *indicators.AlignedData) (*RawSignal, error) {
	if len(data.Candles) < mrs.minBars {
		return nil, fmt.Errorf("%s: K线数量 %d 不足（需要 %d）", data.Symbol, len(data.Candles), mrs.minBars)
	}

	upper, ok := data.Last("bb_upper")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 bb_upper 序列", data.Symbol)
	}
	middle, ok := data.Last("bb_middle")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 bb_middle 序列", data.Symbol)
	}
	lower, ok := data.Last("bb_lower")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 bb_lower 序列", data.Symbol)
	}
	rsi, ok := data.Last("rsi")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 rsi 序列", data.Symbol)
	}

	bandWidth := upper - lower
	if bandWidth <= 0 || middle <= 0 {
		return nil, fmt.Errorf("%s: 非法布林带 upper=%.5f lower=%.5f", data.Symbol, upper, lower)
	}

	last := data.Candles[len(data.Candles)-1]

	var direction string
	var excursion float64 // 价格越出外沿的幅度（以带宽为单位）
	switch {
	case last.Close <= lower && rsi <= mrs.oversold:
		direction = "long"
		excursion = (lower - last.Close) / bandWidth
	case last.Close >= upper && rsi >= mrs.overbought:
		direction = "short"
		excursion = (last.Close - upper) / bandWidth
	default:
		return nil, nil
	}

	// 信心分：基础分 + RSI 极端度贡献（最多25） + 越界幅度贡献（最多15）
	var rsiExtremity float64
	if direction == "long" {
		rsiExtremity = mrs.oversold - rsi
	} else {
		rsiExtremity = rsi - mrs.overbought
	}
	confidence := mrs.baseScore
	confidence += math.Min(25, rsiExtremity*1.5)
	confidence += math.Min(15, excursion*60)

	triggers := []string{
		fmt.Sprintf("close %.5f outside band (excursion %.2f of width)", last.Close, excursion),
		fmt.Sprintf("rsi %.1f in reversal zone", rsi),
	}

	return &RawSignal{
		Direction:   direction,
		Confidence:  confidence,
		Triggers:    triggers,
		ReasonCodes: []string{"band_touch", "rsi_extreme"},
	}, nil
}
