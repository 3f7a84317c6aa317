package strategy

import (
	"fmt"
	"math"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
)

// MomentumStrategy 动量趋势策略
// 快慢EMA交叉方向 + ADX 强度确认，信心分由趋势强度与均线分离度共同决定。
type MomentumStrategy struct {
	id      string
	minBars int

	fastPeriod   int
	slowPeriod   int
	adxPeriod    int
	adxThreshold float64
	baseScore    float64
}

// NewMomentumStrategy 从配置创建动量策略
func NewMomentumStrategy(sc *config.StrategyConfig) *MomentumStrategy {
	ms := &MomentumStrategy{
		id:           sc.ID,
		minBars:      sc.MinBars,
		fastPeriod:   int(paramOr(sc.Params, "fast_period", 20)),
		slowPeriod:   int(paramOr(sc.Params, "slow_period", 50)),
		adxPeriod:    int(paramOr(sc.Params, "adx_period", 14)),
		adxThreshold: paramOr(sc.Params, "adx_threshold", 20),
		baseScore:    paramOr(sc.Params, "base_score", 55),
	}
	if ms.minBars <= 0 {
		ms.minBars = ms.slowPeriod * 2
	}
	return ms
}

// ID 返回策略ID
func (ms *MomentumStrategy) ID() string {
	return ms.id
}

// Type 返回策略类型
func (ms *MomentumStrategy) Type() string {
	return "trend"
}

// RequiredIndicators 返回必需的指标序列名称
func (ms *MomentumStrategy) RequiredIndicators() []string {
	return []string{"ema_fast", "ema_slow", "adx"}
}

// MinBars 返回评估所需的最少K线数量
func (ms *MomentumStrategy) MinBars() int {
	return ms.minBars
}

// Evaluate 评估最新K线是否触发动量信号
func (ms *MomentumStrategy) Evaluate(data *indicators.AlignedData) (*RawSignal, error) {
	if len(data.Candles) < ms.minBars {
		return nil, fmt.Errorf("%s: K线数量 %d 不足（需要 %d）", data.Symbol, len(data.Candles), ms.minBars)
	}

	fast, ok := data.Last("ema_fast")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 ema_fast 序列", data.Symbol)
	}
	slow, ok := data.Last("ema_slow")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 ema_slow 序列", data.Symbol)
	}
	adx, ok := data.Last("adx")
	if !ok {
		return nil, fmt.Errorf("%s: 缺少 adx 序列", data.Symbol)
	}

	if adx < ms.adxThreshold {
		// 趋势强度不足，不出信号
		return nil, nil
	}

	last := data.Candles[len(data.Candles)-1]
	if last.Close <= 0 || slow <= 0 {
		return nil, fmt.Errorf("%s: 非法价格数据 close=%.5f slow=%.5f", data.Symbol, last.Close, slow)
	}

	// 均线分离度（相对慢线的百分比）
	separation := (fast - slow) / slow * 100

	var direction string
	switch {
	case fast > slow && last.Close > fast:
		direction = "long"
	case fast < slow && last.Close < fast:
		direction = "short"
	default:
		return nil, nil
	}

	// 信心分：基础分 + ADX 强度贡献（最多25） + 分离度贡献（最多15）
	confidence := ms.baseScore
	confidence += math.Min(25, (adx-ms.adxThreshold)*1.25)
	confidence += math.Min(15, math.Abs(separation)*10)

	triggers := []string{
		fmt.Sprintf("ema%d/%d cross confirmed (sep %.2f%%)", ms.fastPeriod, ms.slowPeriod, separation),
		fmt.Sprintf("adx %.1f above threshold %.1f", adx, ms.adxThreshold),
	}

	return &RawSignal{
		Direction:   direction,
		Confidence:  confidence,
		Triggers:    triggers,
		ReasonCodes: []string{"ema_cross", "adx_confirm"},
	}, nil
}
