package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/database"
	"github.com/URF365LLC/forex-decision-engine--sub000/lock"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/metrics"
)

// 预警阈值：达到限额的75%时告警但不拦截
const warnRatio = 0.75

// 拒绝原因分类
const (
	ReasonClassDataIntegrity = "data_integrity"
	ReasonClassMarket        = "market_condition"
	ReasonClassRiskLimit     = "risk_limit"
	ReasonClassSizing        = "sizing"
)

// DrawdownCheckInput 回撤检查输入
type DrawdownCheckInput struct {
	AccountID         string
	Equity            float64  // 当前权益
	StartOfDayEquity  *float64 // 经纪商提供的日初权益（可选，优先级最高）
	PeakEquity        *float64 // 经纪商提供的峰值权益（可选）
	DailyLossLimitPct float64  // 日亏损限额（百分比）
	MaxDrawdownPct    float64  // 最大回撤限额（百分比）
}

// DrawdownMetrics 回撤度量
type DrawdownMetrics struct {
	StartOfDayEquity float64
	PeakEquity       float64
	DailyDrawdownPct float64
	TotalDrawdownPct float64
	Source           string // broker / calculated / unknown
}

// DrawdownCheckResult 回撤检查结果
type DrawdownCheckResult struct {
	Allowed     bool
	Reason      string
	ReasonClass string
	Warnings    []string
	Metrics     DrawdownMetrics
}

// DrawdownGuard 账户回撤守护
// 状态按账户持久化，按UTC日历日滚动；每次检查都是 加锁→读取→变更→落库 的原子过程。
type DrawdownGuard struct {
	db      database.Database
	locks   lock.DistributedLock
	lockTTL time.Duration

	mu    sync.Mutex
	cache map[string]*database.DrawdownState
}

// NewDrawdownGuard 创建回撤守护
func NewDrawdownGuard(db database.Database, locks lock.DistributedLock, lockTTL time.Duration) *DrawdownGuard {
	if locks == nil {
		locks = lock.NewMemoryLock()
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &DrawdownGuard{
		db:      db,
		locks:   locks,
		lockTTL: lockTTL,
		cache:   make(map[string]*database.DrawdownState),
	}
}

// dayKey UTC 日历日
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Check 执行回撤检查
// 权益非法（NaN/Inf/非正）立即拒绝——缺少可信输入本身就是拒绝理由，绝不当作"无仓位"。
func (g *DrawdownGuard) Check(ctx context.Context, in *DrawdownCheckInput) (*DrawdownCheckResult, error) {
	result := &DrawdownCheckResult{}

	if in.AccountID == "" {
		result.Reason = "账户标识缺失"
		result.ReasonClass = ReasonClassRiskLimit
		return result, nil
	}
	if math.IsNaN(in.Equity) || math.IsInf(in.Equity, 0) || in.Equity <= 0 {
		result.Reason = fmt.Sprintf("权益非法，拒绝交易: %v", in.Equity)
		result.ReasonClass = ReasonClassRiskLimit
		return result, nil
	}

	lockKey := "drawdown:" + in.AccountID
	if err := g.locks.Lock(ctx, lockKey, g.lockTTL); err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer g.locks.Unlock(ctx, lockKey)

	state, err := g.loadState(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	today := dayKey(now)

	if state == nil {
		state = &database.DrawdownState{
			AccountID: in.AccountID,
			DayKey:    today,
			Source:    "unknown",
		}
	}

	// 日切：新的一天以当天首次见到的权益作为日初权益
	if state.DayKey != today {
		state.DayKey = today
		state.StartOfDayEquity = 0
		state.Source = "unknown"
	}

	// 日初权益来源优先级：经纪商提供 > 已持久化 > 当前权益（降级并告警）
	switch {
	case in.StartOfDayEquity != nil && *in.StartOfDayEquity > 0:
		state.StartOfDayEquity = *in.StartOfDayEquity
		state.Source = "broker"
	case state.StartOfDayEquity > 0:
		// 沿用已持久化的日初权益
	default:
		state.StartOfDayEquity = in.Equity
		state.Source = "calculated"
		result.Warnings = append(result.Warnings,
			"日初权益未经核实，使用当前权益代替，日内亏损统计可能偏小")
	}

	// 峰值权益只向上棘轮
	if in.PeakEquity != nil && *in.PeakEquity > state.PeakEquity {
		state.PeakEquity = *in.PeakEquity
	}
	if in.Equity > state.PeakEquity {
		state.PeakEquity = in.Equity
	}

	state.LastEquity = in.Equity
	state.LastUpdated = now

	// 计算回撤
	m := DrawdownMetrics{
		StartOfDayEquity: state.StartOfDayEquity,
		PeakEquity:       state.PeakEquity,
		Source:           state.Source,
	}
	if state.StartOfDayEquity > 0 {
		m.DailyDrawdownPct = (state.StartOfDayEquity - in.Equity) / state.StartOfDayEquity * 100
	}
	if state.PeakEquity > 0 {
		m.TotalDrawdownPct = (state.PeakEquity - in.Equity) / state.PeakEquity * 100
	}
	result.Metrics = m

	if err := g.saveState(ctx, state); err != nil {
		return nil, err
	}

	metrics.SetDrawdown(in.AccountID, m.DailyDrawdownPct, m.TotalDrawdownPct)

	// 限额判断：达到即拦截（>=，不是 >）
	if in.DailyLossLimitPct > 0 && m.DailyDrawdownPct >= in.DailyLossLimitPct {
		result.Reason = fmt.Sprintf("Daily loss limit breached: %.2f%% >= %.2f%%",
			m.DailyDrawdownPct, in.DailyLossLimitPct)
		result.ReasonClass = ReasonClassRiskLimit
		logger.Warn("🛑 账户 %s 触发日亏损限额: %.2f%% >= %.2f%%",
			in.AccountID, m.DailyDrawdownPct, in.DailyLossLimitPct)
		return result, nil
	}
	if in.MaxDrawdownPct > 0 && m.TotalDrawdownPct >= in.MaxDrawdownPct {
		result.Reason = fmt.Sprintf("Max drawdown breached: %.2f%% >= %.2f%%",
			m.TotalDrawdownPct, in.MaxDrawdownPct)
		result.ReasonClass = ReasonClassRiskLimit
		logger.Warn("🛑 账户 %s 触发最大回撤限额: %.2f%% >= %.2f%%",
			in.AccountID, m.TotalDrawdownPct, in.MaxDrawdownPct)
		return result, nil
	}

	// 预警区间：达到限额的75%
	if in.DailyLossLimitPct > 0 && m.DailyDrawdownPct >= in.DailyLossLimitPct*warnRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("日内回撤 %.2f%% 已达限额 %.2f%% 的75%%", m.DailyDrawdownPct, in.DailyLossLimitPct))
	}
	if in.MaxDrawdownPct > 0 && m.TotalDrawdownPct >= in.MaxDrawdownPct*warnRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("总回撤 %.2f%% 已达限额 %.2f%% 的75%%", m.TotalDrawdownPct, in.MaxDrawdownPct))
	}

	result.Allowed = true
	return result, nil
}

// loadState 加载账户状态（缓存优先，落库兜底）
// 注意：调用方必须已持有账户锁
func (g *DrawdownGuard) loadState(ctx context.Context, accountID string) (*database.DrawdownState, error) {
	g.mu.Lock()
	cached, ok := g.cache[accountID]
	g.mu.Unlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	if g.db == nil {
		return nil, nil
	}

	state, err := g.db.GetDrawdownState(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("读取回撤状态失败: %w", err)
	}
	return state, nil
}

// saveState 保存账户状态
// 注意：调用方必须已持有账户锁
func (g *DrawdownGuard) saveState(ctx context.Context, state *database.DrawdownState) error {
	if g.db != nil {
		if err := g.db.SaveDrawdownState(ctx, state); err != nil {
			return fmt.Errorf("保存回撤状态失败: %w", err)
		}
	}

	g.mu.Lock()
	copied := *state
	g.cache[state.AccountID] = &copied
	g.mu.Unlock()
	return nil
}
