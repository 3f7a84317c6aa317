package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/metrics"
)

// Position 持仓记录
type Position struct {
	Symbol     string
	Direction  string // long / short
	Lots       float64
	EntryPrice float64
	StopLoss   float64
	RiskAmount float64
	OpenedAt   time.Time
}

// TradeCheckInput 新交易检查输入
type TradeCheckInput struct {
	Symbol      string
	Direction   string
	RiskPercent float64
	AccountSize float64
	Equity      float64
	// 经纪商侧权益快照（可选，优先于本地推算）
	StartOfDayEquity *float64
	PeakEquity       *float64
	// Bypass 显式绕过风控拦截（必须大声记录，仅限人工确认场景）
	Bypass bool
}

// TradeCheckResult 新交易检查结果
type TradeCheckResult struct {
	Allowed           bool
	Reason            string
	ReasonClass       string
	CurrencyExposures map[string]float64 // 各币种净敞口占账户百分比（含候选交易）
	Warnings          []string
}

// PortfolioConfig 组合风控配置
type PortfolioConfig struct {
	AccountID         string
	MaxOpenPositions  int     // 最大持仓数量
	CurrencyCapPct    float64 // 单币种净敞口上限（占账户百分比）
	DailyLossLimitPct float64
	MaxDrawdownPct    float64
}

// PortfolioRiskManager 组合级风控
// 先委托回撤守护，再检查持仓数量上限和按币种轧差的净敞口上限。
type PortfolioRiskManager struct {
	cfg   PortfolioConfig
	guard *DrawdownGuard

	mu        sync.RWMutex
	positions map[string]*Position // 按符号索引的持仓集合
}

// NewPortfolioRiskManager 创建组合风控
func NewPortfolioRiskManager(cfg PortfolioConfig, guard *DrawdownGuard) *PortfolioRiskManager {
	if cfg.MaxOpenPositions <= 0 {
		cfg.MaxOpenPositions = 5
	}
	if cfg.CurrencyCapPct <= 0 {
		cfg.CurrencyCapPct = 2
	}
	return &PortfolioRiskManager{
		cfg:       cfg,
		guard:     guard,
		positions: make(map[string]*Position),
	}
}

// CheckNewTrade 检查新交易是否可以放行
func (p *PortfolioRiskManager) CheckNewTrade(ctx context.Context, in *TradeCheckInput) (*TradeCheckResult, error) {
	result := &TradeCheckResult{
		CurrencyExposures: make(map[string]float64),
	}

	if in.AccountSize <= 0 || math.IsNaN(in.AccountSize) {
		result.Reason = fmt.Sprintf("账户规模非法: %v", in.AccountSize)
		result.ReasonClass = ReasonClassRiskLimit
		return result, nil
	}

	// 1. 回撤守护优先，任何回撤拦截直接短路
	ddResult, err := p.guard.Check(ctx, &DrawdownCheckInput{
		AccountID:         p.cfg.AccountID,
		Equity:            in.Equity,
		StartOfDayEquity:  in.StartOfDayEquity,
		PeakEquity:        in.PeakEquity,
		DailyLossLimitPct: p.cfg.DailyLossLimitPct,
		MaxDrawdownPct:    p.cfg.MaxDrawdownPct,
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, ddResult.Warnings...)
	if !ddResult.Allowed {
		if in.Bypass {
			logger.Error("🚨 风控绕过已启用！账户 %s 在回撤拦截下强行放行交易 %s（原因: %s）",
				p.cfg.AccountID, in.Symbol, ddResult.Reason)
			result.Warnings = append(result.Warnings, "风控绕过: "+ddResult.Reason)
		} else {
			result.Reason = ddResult.Reason
			result.ReasonClass = ddResult.ReasonClass
			metrics.RecordRiskBlock(p.cfg.AccountID, result.ReasonClass)
			return result, nil
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	// 2. 持仓数量上限
	if len(p.positions) >= p.cfg.MaxOpenPositions {
		if in.Bypass {
			logger.Error("🚨 风控绕过已启用！账户 %s 超出持仓上限仍放行交易 %s", p.cfg.AccountID, in.Symbol)
			result.Warnings = append(result.Warnings, "风控绕过: 持仓数量已达上限")
		} else {
			result.Reason = fmt.Sprintf("Max open positions reached: %d >= %d",
				len(p.positions), p.cfg.MaxOpenPositions)
			result.ReasonClass = ReasonClassRiskLimit
			metrics.RecordRiskBlock(p.cfg.AccountID, result.ReasonClass)
			return result, nil
		}
	}

	// 3. 币种净敞口轧差（含候选交易）
	// 上限只拦截候选交易会推高净敞口绝对值的币种；
	// 与候选无关的既有超限币种按巡检口径记警告，不株连。
	candidateRisk := in.AccountSize * in.RiskPercent / 100
	baseline := p.netExposuresLocked("", "", 0)
	exposures := p.netExposuresLocked(in.Symbol, in.Direction, candidateRisk)

	currencies := make([]string, 0, len(exposures))
	for c := range exposures {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	for _, currency := range currencies {
		pct := math.Abs(exposures[currency]) / in.AccountSize * 100
		result.CurrencyExposures[currency] = pct
		metrics.SetCurrencyExposure(p.cfg.AccountID, currency, pct)

		if pct >= p.cfg.CurrencyCapPct {
			if math.Abs(exposures[currency]) <= math.Abs(baseline[currency]) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("币种 %s 既有净敞口 %.2f%% 已超上限 %.2f%%（候选交易未推高）",
						currency, pct, p.cfg.CurrencyCapPct))
				continue
			}
			if in.Bypass {
				logger.Error("🚨 风控绕过已启用！账户 %s 币种 %s 敞口 %.2f%% 超限仍放行",
					p.cfg.AccountID, currency, pct)
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("风控绕过: %s 敞口 %.2f%% 超限", currency, pct))
				continue
			}
			result.Reason = fmt.Sprintf("Currency exposure cap exceeded: %s %.2f%% >= %.2f%%",
				currency, pct, p.cfg.CurrencyCapPct)
			result.ReasonClass = ReasonClassRiskLimit
			metrics.RecordRiskBlock(p.cfg.AccountID, result.ReasonClass)
			return result, nil
		}
	}

	result.Allowed = true
	return result, nil
}

// AuditExposure 审计现有敞口（无候选交易）
// 75%-100% 区间只产生警告不拦截。
func (p *PortfolioRiskManager) AuditExposure(accountSize float64) *TradeCheckResult {
	result := &TradeCheckResult{
		Allowed:           true,
		CurrencyExposures: make(map[string]float64),
	}
	if accountSize <= 0 {
		return result
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	exposures := p.netExposuresLocked("", "", 0)

	currencies := make([]string, 0, len(exposures))
	for c := range exposures {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	for _, currency := range currencies {
		pct := math.Abs(exposures[currency]) / accountSize * 100
		result.CurrencyExposures[currency] = pct
		metrics.SetCurrencyExposure(p.cfg.AccountID, currency, pct)

		if pct >= p.cfg.CurrencyCapPct*warnRatio {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("币种 %s 净敞口 %.2f%% 已达上限 %.2f%% 的75%%",
					currency, pct, p.cfg.CurrencyCapPct))
		}
	}

	return result
}

// netExposuresLocked 计算各币种净敞口
// 多头：+基础货币/−计价货币；空头：−基础货币/+计价货币，按风险金额加权。
// 注意：调用方必须已持有读锁
func (p *PortfolioRiskManager) netExposuresLocked(candSymbol, candDirection string, candRisk float64) map[string]float64 {
	exposures := make(map[string]float64)

	add := func(symbol, direction string, risk float64) {
		base, quote := BaseQuote(symbol)
		sign := 1.0
		if direction == "short" {
			sign = -1.0
		}
		exposures[base] += sign * risk
		exposures[quote] -= sign * risk
	}

	for _, pos := range p.positions {
		add(pos.Symbol, pos.Direction, pos.RiskAmount)
	}
	if candSymbol != "" && candRisk > 0 {
		add(candSymbol, candDirection, candRisk)
	}

	return exposures
}

// AddPosition 记录新开仓
func (p *PortfolioRiskManager) AddPosition(pos *Position) {
	if pos == nil || pos.Symbol == "" {
		return
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = time.Now()
	}
	p.mu.Lock()
	p.positions[pos.Symbol] = pos
	p.mu.Unlock()
}

// RemovePosition 移除持仓（平仓/撤单）
func (p *PortfolioRiskManager) RemovePosition(symbol string) {
	p.mu.Lock()
	delete(p.positions, symbol)
	p.mu.Unlock()
}

// OpenPositions 当前持仓快照
func (p *PortfolioRiskManager) OpenPositions() []*Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Position, 0, len(p.positions))
	for _, pos := range p.positions {
		copied := *pos
		result = append(result, &copied)
	}
	return result
}
