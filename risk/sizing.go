package risk

import (
	"fmt"
	"math"
)

// 手数边界与步长
const (
	minLots = 0.01
	maxLots = 100.0
	lotStep = 0.01
)

// 外汇每点价值（每标准手，USD 近似值）
// 真实点值依赖实时交叉汇率，结果必须标记为近似值。
const (
	pipValuePerLot    = 10.0
	pipValuePerLotJPY = 6.8
)

// PositionSizeResult 仓位计算结果
// IsValid=false 时调用方必须拒绝该交易，不允许退回任何默认手数。
type PositionSizeResult struct {
	Lots          float64  // 手数
	Units         float64  // 标的数量
	RiskAmount    float64  // 风险金额（USD）
	IsApproximate bool     // 外汇点值近似计算时为 true
	IsValid       bool     // false 表示结果不可用于下单
	Warnings      []string // 计算过程中的警告
}

// PositionSizer 按资产类别分发的仓位计算器
type PositionSizer struct {
	leverage float64
}

// NewPositionSizer 创建仓位计算器
func NewPositionSizer(leverage float64) *PositionSizer {
	if leverage <= 0 {
		leverage = 1
	}
	return &PositionSizer{leverage: leverage}
}

// Size 计算仓位
// stopDistance 为入场价到止损价的价格距离（绝对值）。
func (s *PositionSizer) Size(symbol string, accountSize, riskPercent, stopDistance, entryPrice float64) *PositionSizeResult {
	result := &PositionSizeResult{}

	// 输入校验：任何非法输入直接返回无效结果
	if accountSize <= 0 || math.IsNaN(accountSize) || math.IsInf(accountSize, 0) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("账户规模非法: %v", accountSize))
		return result
	}
	if riskPercent <= 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("风险比例非法: %v", riskPercent))
		return result
	}
	if stopDistance <= 0 || math.IsNaN(stopDistance) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("止损距离非法: %v", stopDistance))
		return result
	}
	if entryPrice <= 0 || math.IsNaN(entryPrice) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("入场价非法: %v", entryPrice))
		return result
	}

	riskAmount := accountSize * riskPercent / 100
	result.RiskAmount = riskAmount

	var lots, contractSize, notionalPerLot float64

	switch Classify(symbol) {
	case AssetForex:
		// 近似路径：点距 × 每点价值
		pipSize := PipSize(symbol)
		pipDistance := stopDistance / pipSize
		pipValue := pipValuePerLot
		if IsJPYQuote(symbol) {
			pipValue = pipValuePerLotJPY
		}
		lots = riskAmount / (pipDistance * pipValue)
		contractSize = forexContractSize
		result.IsApproximate = true

		// 每手名义价值（账户货币）：JPY计价对的报价不是USD，按每手10万基础货币近似
		notionalPerLot = forexContractSize * entryPrice
		if IsJPYQuote(symbol) {
			notionalPerLot = forexContractSize
		}

	default:
		// 精确路径：合约表必须命中，未知符号 fail closed
		cs, ok := ContractSize(symbol)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("合约规格未核对，拒绝交易: %s", symbol))
			return result
		}
		lots = riskAmount / (stopDistance * cs)
		contractSize = cs
		notionalPerLot = entryPrice * cs
	}

	result.IsValid = true

	// 保证金上限
	marginCap := accountSize * s.leverage / notionalPerLot
	if lots > marginCap {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("保证金不足，手数由 %.4f 降至上限 %.4f", lots, marginCap))
		lots = marginCap
		result.IsValid = false
	}

	// 边界裁剪：任何裁剪都标记结果无效，调用方必须复核
	if lots < minLots {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("手数 %.6f 低于最小手数 %.2f，已夹取", lots, minLots))
		lots = minLots
		result.IsValid = false
	}
	if lots > maxLots {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("手数 %.4f 超过最大手数 %.0f，已夹取", lots, maxLots))
		lots = maxLots
		result.IsValid = false
	}

	// 按步长取整（向下，避免放大风险）
	lots = math.Floor(lots/lotStep+1e-9) * lotStep
	lots = math.Round(lots*100) / 100

	result.Lots = lots
	result.Units = lots * contractSize
	return result
}
