package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/preflight"
	"github.com/URF365LLC/forex-decision-engine--sub000/risk"
)

// Decision 交易决策（构建后不可变，供冷却/日志/看板消费）
type Decision struct {
	Symbol     string
	StrategyID string
	Style      string
	Direction  string // long / short
	Grade      string
	Confidence float64 // 夹取后的 [0,100]

	Entry      float64
	StopLoss   float64
	Target     float64
	StopPips   float64 // 外汇符号的止损点距（其余为0）
	TargetPips float64
	RMultiple  float64

	Size *risk.PositionSizeResult

	Triggers  []string
	Warnings  []string
	CreatedAt time.Time
	ValidFrom time.Time
	ValidTo   time.Time
}

// IsTradeable 是否为可执行决策（评级有效且仓位结果可用）
func (d *Decision) IsTradeable() bool {
	return d != nil && IsTradeGrade(d.Grade) && d.Size != nil && d.Size.IsValid
}

// 止损/目标的结构化与ATR回退参数
const (
	swingLookback     = 10  // 摆动高低点回看K线数
	stopBufferATR     = 0.1 // 结构止损的ATR缓冲
	stopFallbackATR   = 1.5 // 无结构时的ATR止损距离
	targetFallbackATR = 2.0 // 无结构时的ATR目标距离
	minStructureR     = 1.0 // 结构目标可接受的最小盈亏比
	thinSessionScale  = 0.8 // 薄流动性时段的目标压缩比例
)

// BuildInput 决策构建输入
type BuildInput struct {
	Symbol     string
	StrategyID string
	Style      string
	Direction  string
	Confidence float64 // 策略原始信心分
	Adjustment int     // 预检门控的有符号信心调整
	Triggers   []string
	Warnings   []string

	Candles []indicators.Candle
	ATR     float64
	Session *preflight.SessionInfo

	AccountSize float64
	RiskPercent float64
	ValidFor    time.Duration // 决策有效窗口
}

// Builder 决策构建器
type Builder struct {
	grades *GradeTable
	sizer  *risk.PositionSizer
}

// NewBuilder 创建决策构建器
func NewBuilder(grades *GradeTable, sizer *risk.PositionSizer) *Builder {
	if grades == nil {
		grades = DefaultGradeTable()
	}
	return &Builder{grades: grades, sizer: sizer}
}

// Build 构建决策
// 信心分夹取到[0,100]后查评级表；不可交易评级返回仅携带评级的决策。
// 止损/目标几何关系非法时决策作废（返回错误）。
func (b *Builder) Build(in *BuildInput) (*Decision, error) {
	now := time.Now()

	confidence := ClampConfidence(in.Confidence + float64(in.Adjustment))
	grade := b.grades.Grade(confidence)

	d := &Decision{
		Symbol:     in.Symbol,
		StrategyID: in.StrategyID,
		Style:      in.Style,
		Direction:  in.Direction,
		Grade:      grade,
		Confidence: confidence,
		Triggers:   in.Triggers,
		Warnings:   append([]string{}, in.Warnings...),
		CreatedAt:  now,
		ValidFrom:  now,
	}
	if in.ValidFor > 0 {
		d.ValidTo = now.Add(in.ValidFor)
	}

	// 不可交易评级：不定价、不计算仓位
	if !IsTradeGrade(grade) || in.Direction == "" {
		d.Grade = GradeNoTrade
		return d, nil
	}

	if len(in.Candles) == 0 {
		return nil, fmt.Errorf("%s: 无法定价，K线序列为空", in.Symbol)
	}
	entry := in.Candles[len(in.Candles)-1].Close
	if entry <= 0 {
		return nil, fmt.Errorf("%s: 入场价非法: %v", in.Symbol, entry)
	}
	if in.ATR <= 0 || math.IsNaN(in.ATR) {
		return nil, fmt.Errorf("%s: ATR 非法: %v", in.Symbol, in.ATR)
	}
	d.Entry = entry

	d.StopLoss = b.stopLoss(in, entry)
	d.Target = b.target(in, entry, d.StopLoss, &d.Warnings)

	// 几何校验：止损与目标必须在入场价的正确两侧，否则决策作废
	if !validGeometry(in.Direction, entry, d.StopLoss, d.Target) {
		return nil, fmt.Errorf("%s: 订单几何非法 entry=%.5f stop=%.5f target=%.5f direction=%s",
			in.Symbol, entry, d.StopLoss, d.Target, in.Direction)
	}

	stopDistance := math.Abs(entry - d.StopLoss)
	targetDistance := math.Abs(d.Target - entry)
	d.RMultiple = targetDistance / stopDistance

	if risk.Classify(in.Symbol) == risk.AssetForex {
		pip := risk.PipSize(in.Symbol)
		d.StopPips = stopDistance / pip
		d.TargetPips = targetDistance / pip
	}

	// 仓位计算（失败时结果无效，调用方不得执行）
	d.Size = b.sizer.Size(in.Symbol, in.AccountSize, in.RiskPercent, stopDistance, entry)
	d.Warnings = append(d.Warnings, d.Size.Warnings...)

	return d, nil
}

// stopLoss 结构化止损，无有效结构时回退ATR距离
func (b *Builder) stopLoss(in *BuildInput, entry float64) float64 {
	// 结构位取信号K线之前的摆动高低点
	structural := in.Candles
	if len(structural) > 1 {
		structural = structural[:len(structural)-1]
	}

	buffer := in.ATR * stopBufferATR
	if in.Direction == "long" {
		swing := indicators.LowestLow(structural, swingLookback)
		if swing > 0 && swing < entry {
			return swing - buffer
		}
		return entry - in.ATR*stopFallbackATR
	}

	swing := indicators.HighestHigh(structural, swingLookback)
	if swing > entry {
		return swing + buffer
	}
	return entry + in.ATR*stopFallbackATR
}

// target 结构优先的目标位，结构盈亏比不足时回退ATR距离；薄流动性时段压缩目标
func (b *Builder) target(in *BuildInput, entry, stop float64, warnings *[]string) float64 {
	stopDistance := math.Abs(entry - stop)

	var structural, fallback float64
	if in.Direction == "long" {
		structural = indicators.HighestHigh(in.Candles, swingLookback*2)
		fallback = entry + in.ATR*targetFallbackATR
	} else {
		structural = indicators.LowestLow(in.Candles, swingLookback*2)
		fallback = entry - in.ATR*targetFallbackATR
	}

	target := fallback
	if stopDistance > 0 && structural > 0 {
		structureR := math.Abs(structural-entry) / stopDistance
		if structureR >= minStructureR &&
			((in.Direction == "long" && structural > entry) ||
				(in.Direction == "short" && structural < entry)) {
			target = structural
		}
	}

	// 薄流动性时段目标压缩
	if in.Session.IsThinSession() {
		scaled := entry + (target-entry)*thinSessionScale
		*warnings = append(*warnings,
			fmt.Sprintf("薄流动性时段 %s，目标位压缩至 %.5f", in.Session.Name, scaled))
		target = scaled
	}

	return target
}

// validGeometry 止损/目标相对入场价的几何校验
func validGeometry(direction string, entry, stop, target float64) bool {
	switch direction {
	case "long":
		return stop < entry && target > entry
	case "short":
		return stop > entry && target < entry
	default:
		return false
	}
}
