package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/cooldown"
	"github.com/URF365LLC/forex-decision-engine--sub000/database"
	"github.com/URF365LLC/forex-decision-engine--sub000/decision"
	"github.com/URF365LLC/forex-decision-engine--sub000/event"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/metrics"
	"github.com/URF365LLC/forex-decision-engine--sub000/preflight"
	"github.com/URF365LLC/forex-decision-engine--sub000/risk"
	"github.com/URF365LLC/forex-decision-engine--sub000/strategy"
)

// MarketData 行情协作方接口
// Aligned 返回某符号在某交易风格对应周期上的对齐数据视图；
// HigherTimeframe 返回用于趋势背景分析的高周期K线。
type MarketData interface {
	Aligned(ctx context.Context, symbol, style string) (*indicators.AlignedData, error)
	HigherTimeframe(ctx context.Context, symbol string) ([]indicators.Candle, error)
}

// AccountSnapshot 账户快照
// 日初权益与峰值权益可选：经纪商给出时优先采用，缺失时由回撤守护自行推算。
type AccountSnapshot struct {
	Equity           float64
	StartOfDayEquity *float64
	PeakEquity       *float64
}

// AccountData 账户协作方接口
type AccountData interface {
	Snapshot(ctx context.Context) (*AccountSnapshot, error)
}

// Outcome 单符号评估结果
type Outcome struct {
	Symbol     string
	StrategyID string
	Style      string

	Decision *decision.Decision // 产生决策时非空（含 no-trade 决策）
	Upgrade  *event.Upgrade     // 触发升级事件时非空

	Rejected        bool
	RejectStage     string
	RejectReason    string
	ReasonClass     string
	CooldownBlocked bool

	Duration time.Duration
}

// ScanResult 一轮扫描的汇总
type ScanResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Evaluated  int
	Rejected   int
	Decisions  []*decision.Decision
	Upgrades   []*event.Upgrade
	Errors     []error
}

// Engine 信号门控与风控引擎
// 串起完整评估管线：对齐校验 → 策略 → 预检门控 → 决策构建 → 风控检查 → 冷却 → 评级追踪。
type Engine struct {
	market  MarketData
	account AccountData
	db      database.Database

	registry  *strategy.Registry
	gate      *preflight.Gate
	builder   *decision.Builder
	portfolio *risk.PortfolioRiskManager
	cooldown  *cooldown.Service
	tracker   *event.GradeTracker

	limiter *rate.Limiter

	mu  sync.RWMutex
	cfg *config.Config
}

// Deps 引擎依赖
type Deps struct {
	Market    MarketData
	Account   AccountData
	DB        database.Database
	Registry  *strategy.Registry
	Gate      *preflight.Gate
	Builder   *decision.Builder
	Portfolio *risk.PortfolioRiskManager
	Cooldown  *cooldown.Service
	Tracker   *event.GradeTracker
}

// NewEngine 创建引擎
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	limit := rate.Limit(cfg.Scan.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Scan.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Engine{
		market:    deps.Market,
		account:   deps.Account,
		db:        deps.DB,
		registry:  deps.Registry,
		gate:      deps.Gate,
		builder:   deps.Builder,
		portfolio: deps.Portfolio,
		cooldown:  deps.Cooldown,
		tracker:   deps.Tracker,
		limiter:   rate.NewLimiter(limit, burst),
		cfg:       cfg,
	}
}

// ApplyConfig 应用热更新后的配置
// 仅替换数据性配置（清单、策略参数、门控阈值）；持仓与回撤状态不受影响。
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.registry = strategy.BuildRegistry(cfg)
	e.gate = preflight.NewGate(preflight.Config{
		FreshnessCheck:  cfg.Preflight.FreshnessCheck,
		FreshnessLimits: cfg.Preflight.FreshnessLimits,
		VolatilityFloor: cfg.Preflight.VolatilityFloor,
		VolatilityCeil:  cfg.Preflight.VolatilityCeil,
		HTFEMAPeriod:    cfg.Preflight.HTFEMAPeriod,
		HTFADXPeriod:    cfg.Preflight.HTFADXPeriod,
	})
	e.builder = decision.NewBuilder(
		decision.NewGradeTable(gradeSteps(cfg), cfg.Grading.NoTradeBelow),
		risk.NewPositionSizer(cfg.Account.Leverage),
	)

	logger.Info("🔄 引擎已应用新配置（清单 %d 项，策略 %d 个）", len(cfg.Watchlist), len(cfg.Strategies))
}

func gradeSteps(cfg *config.Config) []decision.GradeStep {
	steps := make([]decision.GradeStep, 0, len(cfg.Grading.Steps))
	for _, s := range cfg.Grading.Steps {
		steps = append(steps, decision.GradeStep{Grade: s.Grade, MinConfidence: s.MinConfidence})
	}
	return steps
}

// snapshot 读取当前配置与可热替换的组件
func (e *Engine) snapshot() (*config.Config, *strategy.Registry, *preflight.Gate, *decision.Builder) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.registry, e.gate, e.builder
}

// Scan 对扫描清单执行一轮完整评估
// 符号之间检查取消信号；外部数据源访问受限流器约束。
func (e *Engine) Scan(ctx context.Context) *ScanResult {
	cfg, _, _, _ := e.snapshot()

	result := &ScanResult{StartedAt: time.Now()}

	for _, item := range cfg.Watchlist {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("扫描中断: %w", err))
			break
		}
		if err := e.limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("限流等待中断: %w", err))
			break
		}

		outcome, err := e.Evaluate(ctx, item)
		result.Evaluated++
		if err != nil {
			logger.Error("❌ %s 评估失败: %v", item.Symbol, err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", item.Symbol, err))
			continue
		}

		if outcome.Rejected {
			result.Rejected++
		}
		if outcome.Decision != nil && outcome.Decision.IsTradeable() {
			result.Decisions = append(result.Decisions, outcome.Decision)
		}
		if outcome.Upgrade != nil {
			result.Upgrades = append(result.Upgrades, outcome.Upgrade)
		}
	}

	result.FinishedAt = time.Now()
	logger.Info("📊 扫描完成: 评估 %d, 拒绝 %d, 决策 %d, 升级 %d, 错误 %d (耗时 %v)",
		result.Evaluated, result.Rejected, len(result.Decisions), len(result.Upgrades),
		len(result.Errors), result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return result
}

// Evaluate 评估清单中的单个条目
// 返回错误仅代表基础设施故障；业务性拒绝以 Outcome 表达。
func (e *Engine) Evaluate(ctx context.Context, item config.WatchItem) (*Outcome, error) {
	cfg, registry, gate, builder := e.snapshot()
	started := time.Now()

	outcome := &Outcome{Symbol: item.Symbol, StrategyID: item.Strategy, Style: item.Style}
	defer func() {
		outcome.Duration = time.Since(started)
		metrics.ObserveScanDuration(item.Strategy, outcome.Duration)
	}()

	metrics.RecordEvaluation(item.Symbol, item.Strategy)

	strat, err := registry.Get(item.Strategy)
	if err != nil {
		return nil, err
	}

	// 1. 行情获取 + 对齐硬校验（数据完整性错误不降级、不继续）
	data, err := e.market.Aligned(ctx, item.Symbol, item.Style)
	if err != nil {
		return nil, fmt.Errorf("行情获取失败: %w", err)
	}
	if err := data.Validate(strat.RequiredIndicators()...); err != nil {
		e.rejectOutcome(ctx, outcome, "alignment", err.Error(), risk.ReasonClassDataIntegrity)
		return outcome, nil
	}

	// 2. 策略评估
	raw, err := strat.Evaluate(data)
	if err != nil {
		e.rejectOutcome(ctx, outcome, "strategy", err.Error(), risk.ReasonClassDataIntegrity)
		return outcome, nil
	}
	if raw == nil {
		// 无触发不是拒绝，照常向评级追踪上报 no-trade
		outcome.Upgrade = e.tracker.Observe(item.Symbol, item.Strategy, decision.GradeNoTrade, "")
		return outcome, nil
	}

	// 3. 预检门控
	atr := indicators.NewATR(14).CurrentATR(data.Candles)
	var htf *preflight.HTFContext
	if htfCandles, err := e.market.HigherTimeframe(ctx, item.Symbol); err != nil {
		logger.Warn("⚠️ %s 高周期数据获取失败，趋势背景降级为未知: %v", item.Symbol, err)
	} else if len(htfCandles) > 0 {
		htf = &preflight.HTFContext{Candles: htfCandles}
	}

	pf := gate.Evaluate(item.Symbol, data.Candles, data.Interval, atr,
		strat.Type(), raw.Direction, strat.MinBars(), htf)
	if !pf.Passed {
		e.rejectOutcome(ctx, outcome, pf.RejectStage, pf.RejectReason, pf.ReasonClass)
		return outcome, nil
	}

	// 4. 决策构建（评级、定价、仓位）
	d, err := builder.Build(&decision.BuildInput{
		Symbol:      item.Symbol,
		StrategyID:  item.Strategy,
		Style:       item.Style,
		Direction:   raw.Direction,
		Confidence:  raw.Confidence,
		Adjustment:  pf.ConfidenceAdjustment,
		Triggers:    raw.Triggers,
		Warnings:    pf.Warnings,
		Candles:     data.Candles,
		ATR:         atr,
		Session:     pf.Session,
		AccountSize: cfg.Account.Size,
		RiskPercent: cfg.Account.RiskPercent,
		ValidFor:    e.validityWindow(cfg, item.Style),
	})
	if err != nil {
		e.rejectOutcome(ctx, outcome, "decision", err.Error(), risk.ReasonClassSizing)
		return outcome, nil
	}
	outcome.Decision = d

	if !d.IsTradeable() {
		if decision.IsTradeGrade(d.Grade) {
			// 评级可交易但仓位无效，按仓位错误拒绝
			e.rejectOutcome(ctx, outcome, "sizing",
				strings.Join(d.Size.Warnings, "; "), risk.ReasonClassSizing)
		}
		outcome.Upgrade = e.tracker.Observe(item.Symbol, item.Strategy, d.Grade, d.Direction)
		return outcome, nil
	}

	// 5. 账户级与组合级风控（回撤守护在内部先行）
	snap, err := e.account.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("账户快照获取失败: %w", err)
	}

	check, err := e.portfolio.CheckNewTrade(ctx, &risk.TradeCheckInput{
		Symbol:           item.Symbol,
		Direction:        d.Direction,
		RiskPercent:      cfg.Account.RiskPercent,
		AccountSize:      cfg.Account.Size,
		Equity:           snap.Equity,
		StartOfDayEquity: snap.StartOfDayEquity,
		PeakEquity:       snap.PeakEquity,
	})
	if err != nil {
		return nil, fmt.Errorf("风控检查失败: %w", err)
	}
	e.saveRiskCheck(ctx, item.Symbol, check)
	if !check.Allowed {
		outcome.Rejected = true
		outcome.RejectStage = "risk"
		outcome.RejectReason = check.Reason
		outcome.ReasonClass = check.ReasonClass
		return outcome, nil
	}
	d.Warnings = append(d.Warnings, check.Warnings...)

	// 6. 冷却检查（同符号+风格；评级升级与方向翻转放行）
	cd := e.cooldown.Check(item.Symbol, item.Style, d.Direction, d.Grade, d.ValidTo)
	if !cd.Allowed {
		outcome.CooldownBlocked = true
		outcome.Rejected = true
		outcome.RejectStage = "cooldown"
		outcome.RejectReason = fmt.Sprintf("%s (remaining %v)", cd.Reason, cd.Remaining.Round(time.Second))
		outcome.ReasonClass = risk.ReasonClassMarket
		// 被冷却拦截的评级仍需进入追踪，下一轮升级才有比较基准
		outcome.Upgrade = e.tracker.Observe(item.Symbol, item.Strategy, d.Grade, d.Direction)
		return outcome, nil
	}

	// 7. 评级追踪 + 决策落库
	outcome.Upgrade = e.tracker.Observe(item.Symbol, item.Strategy, d.Grade, d.Direction)
	metrics.RecordDecision(item.Symbol, item.Strategy, d.Grade, d.Direction)
	e.saveDecision(ctx, d)

	logger.Info("✅ %s [%s] %s %s 信心 %.1f 入场 %.5f 止损 %.5f 目标 %.5f 手数 %.2f",
		d.Symbol, d.Grade, d.Direction, d.StrategyID, d.Confidence,
		d.Entry, d.StopLoss, d.Target, d.Size.Lots)
	return outcome, nil
}

// Audit 组合敞口巡检（只告警不拦截），并刷新回撤与敞口指标
func (e *Engine) Audit(ctx context.Context) {
	cfg, _, _, _ := e.snapshot()

	audit := e.portfolio.AuditExposure(cfg.Account.Size)
	for _, w := range audit.Warnings {
		logger.Warn("⚠️ 敞口巡检: %s", w)
	}
}

// validityWindow 决策有效窗口：取风格对应的冷却默认时长
func (e *Engine) validityWindow(cfg *config.Config, style string) time.Duration {
	if minutes, ok := cfg.Cooldown.DefaultMinutes[style]; ok && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return time.Hour
}

// rejectOutcome 登记业务性拒绝并落库审计记录
func (e *Engine) rejectOutcome(ctx context.Context, outcome *Outcome, stage, reason, class string) {
	outcome.Rejected = true
	outcome.RejectStage = stage
	outcome.RejectReason = reason
	outcome.ReasonClass = class

	metrics.RecordRejection(outcome.Symbol, stage, class)
	logger.Info("🚫 %s 被拒绝 [%s/%s]: %s", outcome.Symbol, stage, class, reason)

	e.saveRiskCheck(ctx, outcome.Symbol, &risk.TradeCheckResult{
		Allowed:     false,
		Reason:      reason,
		ReasonClass: class,
	})
}

// saveRiskCheck 风控检查记录落库（失败仅告警，不影响主流程）
func (e *Engine) saveRiskCheck(ctx context.Context, symbol string, check *risk.TradeCheckResult) {
	if e.db == nil {
		return
	}
	cfg, _, _, _ := e.snapshot()

	var details string
	if len(check.CurrencyExposures) > 0 {
		if b, err := json.Marshal(check.CurrencyExposures); err == nil {
			details = string(b)
		}
	}
	record := &database.RiskCheckRecord{
		AccountID:   cfg.Account.ID,
		Symbol:      symbol,
		Allowed:     check.Allowed,
		Reason:      check.Reason,
		ReasonClass: check.ReasonClass,
		Details:     details,
		CreatedAt:   time.Now(),
	}
	if err := e.db.SaveRiskCheck(ctx, record); err != nil {
		logger.Warn("⚠️ 风控记录落库失败: %v", err)
	}
}

// saveDecision 决策日志落库（失败仅告警，不影响主流程）
func (e *Engine) saveDecision(ctx context.Context, d *decision.Decision) {
	if e.db == nil {
		return
	}
	record := &database.DecisionRecord{
		Symbol:     d.Symbol,
		StrategyID: d.StrategyID,
		Direction:  d.Direction,
		Grade:      d.Grade,
		Confidence: d.Confidence,
		Entry:      d.Entry,
		StopLoss:   d.StopLoss,
		Target:     d.Target,
		RMultiple:  d.RMultiple,
		Lots:       d.Size.Lots,
		RiskAmount: d.Size.RiskAmount,
		Warnings:   strings.Join(d.Warnings, "; "),
		ValidUntil: d.ValidTo,
		CreatedAt:  d.CreatedAt,
	}
	if err := e.db.SaveDecision(ctx, record); err != nil {
		logger.Warn("⚠️ 决策日志落库失败: %v", err)
	}
}
