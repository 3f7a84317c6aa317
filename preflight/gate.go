// Package preflight 信号预检门控
// 在任何策略产出被定价之前按固定顺序执行质量门控；
// 第一个失败的门控立即短路返回，保证拒绝原因互斥且确定。
package preflight

import (
	"fmt"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/risk"
)

// 门控阶段名称
const (
	StageBarCount   = "bar_count"
	StageBarClosure = "bar_closure"
	StageFreshness  = "freshness"
	StageVolatility = "volatility"
	StageSession    = "session"
	StageRegime     = "regime"
)

// Result 预检结果（每次评估新建，不持久化）
type Result struct {
	Passed               bool
	RejectReason         string
	RejectStage          string
	ReasonClass          string
	Warnings             []string
	ConfidenceAdjustment int        // 有符号累加值，此处不设上下限，由决策构建阶段夹取
	HTFTrend             *TrendInfo // 高周期趋势（门控6产出）
	Regime               Regime     // 市场状态（门控6产出）
	Session              *SessionInfo
}

// HTFContext 高周期上下文（由行情协作方提供）
type HTFContext struct {
	Candles []indicators.Candle
}

// Config 门控配置
type Config struct {
	FreshnessCheck  bool
	FreshnessLimits map[string]int     // 周期 → 入场K线最大年龄（分钟）
	VolatilityFloor map[string]float64 // 资产类别 → ATR% 下限
	VolatilityCeil  map[string]float64 // 资产类别 → ATR% 上限（超出仅扣分）
	HTFEMAPeriod    int
	HTFADXPeriod    int
}

// Gate 预检门控
type Gate struct {
	cfg Config
	now func() time.Time // 可注入时钟，便于测试
}

// NewGate 创建预检门控
func NewGate(cfg Config) *Gate {
	if cfg.HTFEMAPeriod <= 0 {
		cfg.HTFEMAPeriod = 50
	}
	if cfg.HTFADXPeriod <= 0 {
		cfg.HTFADXPeriod = 14
	}
	return &Gate{cfg: cfg, now: time.Now}
}

// SetClock 注入时钟（测试用）
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Evaluate 按固定顺序执行所有门控
// direction 为策略给出的方向（long/short/空），用于趋势一致性加减分。
func (g *Gate) Evaluate(symbol string, candles []indicators.Candle, interval string,
	atr float64, strategyType, direction string, minBars int, htf *HTFContext) *Result {

	result := &Result{Regime: RegimeUnknown}
	now := g.now().UTC()

	// 门控1：K线数量
	if len(candles) < minBars {
		return g.reject(result, StageBarCount,
			fmt.Sprintf("insufficient bars: %d < %d", len(candles), minBars))
	}

	// 门控2：信号K线（倒数第二根）必须确定已收盘
	// 收盘的证据：存在开盘时间不早于信号K线收盘时刻的更新K线，或墙钟时间已过收盘时刻。
	duration, err := indicators.IntervalDuration(interval)
	if err != nil {
		return g.reject(result, StageBarClosure, err.Error())
	}
	// 不足两根K线时没有更新K线可以证明收盘
	if len(candles) < 2 {
		return g.reject(result, StageBarClosure, "signal bar not yet closed")
	}
	signalBar := candles[len(candles)-2]
	signalClose := time.Unix(signalBar.Time, 0).UTC().Add(duration)
	lastBar := candles[len(candles)-1]
	newerExists := !time.Unix(lastBar.Time, 0).UTC().Before(signalClose)
	if !newerExists && now.Before(signalClose) {
		return g.reject(result, StageBarClosure, "signal bar not yet closed")
	}

	// 门控3：入场K线新鲜度（可配置开关）
	if g.cfg.FreshnessCheck {
		if limitMin, ok := g.cfg.FreshnessLimits[interval]; ok && limitMin > 0 {
			age := now.Sub(time.Unix(lastBar.Time, 0).UTC())
			if age > time.Duration(limitMin)*time.Minute {
				return g.reject(result, StageFreshness,
					fmt.Sprintf("entry bar stale: opened %.0fm ago (limit %dm)", age.Minutes(), limitMin))
			}
		}
	}

	assetClass := string(risk.Classify(symbol))

	// 门控4：波动率下限（ATR 占价格百分比）
	lastClose := lastBar.Close
	if lastClose <= 0 {
		return g.reject(result, StageVolatility, "invalid last close price")
	}
	atrPct := atr / lastClose * 100
	if floor, ok := g.cfg.VolatilityFloor[assetClass]; ok && atrPct < floor {
		return g.reject(result, StageVolatility,
			fmt.Sprintf("volatility too low: ATR %.3f%% < floor %.3f%%", atrPct, floor))
	}
	// 波动率过高不拒绝，只扣分
	if ceil, ok := g.cfg.VolatilityCeil[assetClass]; ok && ceil > 0 && atrPct > ceil {
		result.ConfidenceAdjustment -= 10
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("波动率偏高: ATR %.3f%% > 上限 %.3f%%，信心-10", atrPct, ceil))
	}

	// 门控5：交易时段
	session := ClassifySession(assetClass, now)
	result.Session = session
	if !session.Open {
		return g.reject(result, StageSession,
			fmt.Sprintf("market closed: %s", session.Name))
	}
	if session.Adjustment != 0 {
		result.ConfidenceAdjustment += session.Adjustment
		if session.Adjustment < 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("流动性偏薄时段 %s，信心%+d", session.Name, session.Adjustment))
		}
	}

	// 门控6：高周期趋势与市场状态
	if htf != nil && len(htf.Candles) > 0 {
		trend, regime := AnalyzeHTF(htf.Candles, g.cfg.HTFEMAPeriod, g.cfg.HTFADXPeriod)
		result.HTFTrend = trend
		result.Regime = regime

		if regime == RegimeChop {
			return g.reject(result, StageRegime, "chop regime: no tradable structure")
		}
		if mismatch := regimeMismatch(strategyType, regime); mismatch != "" {
			return g.reject(result, StageRegime, mismatch)
		}

		if adj := trendAlignment(trend, direction); adj != 0 {
			result.ConfidenceAdjustment += adj
			logger.Debug("高周期趋势一致性: %s %s vs %s，信心%+d",
				symbol, direction, trend.Direction, adj)
		}
	}

	result.Passed = true
	return result
}

// reject 构造拒绝结果（市场条件类拒绝只记录 debug 日志）
func (g *Gate) reject(result *Result, stage, reason string) *Result {
	result.Passed = false
	result.RejectStage = stage
	result.RejectReason = reason
	result.ReasonClass = risk.ReasonClassMarket
	logger.Debug("预检拒绝 [%s]: %s", stage, reason)
	return result
}

// regimeMismatch 策略类型与市场状态的冲突判断
func regimeMismatch(strategyType string, regime Regime) string {
	switch strategyType {
	case "mean_reversion":
		if regime == RegimeStrongTrend {
			return "regime mismatch: mean-reversion strategy in strong trend"
		}
	case "trend":
		if regime == RegimeRange {
			return "regime mismatch: trend strategy in ranging market"
		}
	}
	return ""
}

// trendAlignment 趋势一致性加减分（±10 ~ ±30，随趋势强度放大）
func trendAlignment(trend *TrendInfo, direction string) int {
	if trend == nil || trend.Direction == TrendNeutral || direction == "" {
		return 0
	}

	magnitude := 10
	if trend.ADX >= 30 {
		magnitude = 20
	}
	if trend.ADX >= 40 {
		magnitude = 30
	}

	aligned := (trend.Direction == TrendBullish && direction == "long") ||
		(trend.Direction == TrendBearish && direction == "short")
	if aligned {
		return magnitude
	}
	return -magnitude
}
