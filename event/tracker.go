package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/decision"
	"github.com/URF365LLC/forex-decision-engine--sub000/metrics"
)

// 环形缓冲默认容量
const defaultHistorySize = 50

// Record 每个 (符号, 策略) 的最近已知评级
type Record struct {
	Grade     string
	Direction string
	At        time.Time
}

// GradeTracker 评级追踪器
// 纯观察者：记录每个 (符号, 策略) 的最近评级，检测升级并推送给订阅者；
// 升级事件额外保留在最近优先的有界环形缓冲中，供迟到的订阅者拉取。
type GradeTracker struct {
	mu      sync.Mutex
	records map[string]*Record
	bus     *Bus

	history     []*Upgrade // 最近优先
	historySize int
}

// NewGradeTracker 创建评级追踪器
func NewGradeTracker(bus *Bus, historySize int) *GradeTracker {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &GradeTracker{
		records:     make(map[string]*Record),
		bus:         bus,
		historySize: historySize,
	}
}

func trackerKey(symbol, strategyID string) string {
	return symbol + "|" + strategyID
}

// Observe 登记一次评估结果，返回检测到的升级事件（无升级返回 nil）
// 升级判定：
//   - new-signal：no-trade（或无记录）→ 可交易评级，或同为可交易但方向翻转
//   - grade-improvement：同方向评级序数升档
//
// 进入 no-trade 或评级不变的转移不是升级。
func (t *GradeTracker) Observe(symbol, strategyID, grade, direction string) *Upgrade {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	k := trackerKey(symbol, strategyID)
	prev := t.records[k]

	t.records[k] = &Record{Grade: grade, Direction: direction, At: now}

	upgrade := classify(prev, grade, direction)
	if upgrade == nil {
		return nil
	}

	upgrade.Symbol = symbol
	upgrade.StrategyID = strategyID
	upgrade.At = now

	// 环形缓冲：最近优先，超容尾部淘汰
	t.history = append([]*Upgrade{upgrade}, t.history...)
	if len(t.history) > t.historySize {
		t.history = t.history[:t.historySize]
	}

	metrics.RecordUpgrade(symbol, strategyID, string(upgrade.Type))
	if t.bus != nil {
		t.bus.Publish(upgrade)
	}

	return upgrade
}

// classify 升级分类（对 {上次, 本次} 的纯函数）
func classify(prev *Record, grade, direction string) *Upgrade {
	// 进入 no-trade 不是升级
	if !decision.IsTradeGrade(grade) {
		return nil
	}

	prevGrade := decision.GradeNoTrade
	prevDirection := ""
	if prev != nil {
		prevGrade = prev.Grade
		prevDirection = prev.Direction
	}

	// 无信号 → 有信号
	if !decision.IsTradeGrade(prevGrade) {
		return &Upgrade{
			PreviousGrade: prevGrade,
			NewGrade:      grade,
			Direction:     direction,
			Type:          UpgradeNewSignal,
			Message:       fmt.Sprintf("new %s signal graded %s", direction, grade),
		}
	}

	// 方向翻转
	if prevDirection != "" && prevDirection != direction {
		return &Upgrade{
			PreviousGrade: prevGrade,
			NewGrade:      grade,
			Direction:     direction,
			Type:          UpgradeNewSignal,
			Message:       fmt.Sprintf("direction flip %s -> %s graded %s", prevDirection, direction, grade),
		}
	}

	// 同方向升档
	if decision.GradeRank(grade) > decision.GradeRank(prevGrade) {
		return &Upgrade{
			PreviousGrade: prevGrade,
			NewGrade:      grade,
			Direction:     direction,
			Type:          UpgradeImproved,
			Message:       fmt.Sprintf("grade improved %s -> %s (%s)", prevGrade, grade, direction),
		}
	}

	return nil
}

// Recent 最近 n 条升级事件（最近优先）
func (t *GradeTracker) Recent(n int) []*Upgrade {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.history) {
		n = len(t.history)
	}
	result := make([]*Upgrade, n)
	copy(result, t.history[:n])
	return result
}

// Since 最近 d 时间窗口内的升级事件（最近优先）
func (t *GradeTracker) Since(d time.Duration) []*Upgrade {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-d)
	var result []*Upgrade
	for _, u := range t.history {
		if u.At.Before(cutoff) {
			break
		}
		result = append(result, u)
	}
	return result
}

// LastRecord 查询某 (符号, 策略) 的最近记录
func (t *GradeTracker) LastRecord(symbol, strategyID string) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[trackerKey(symbol, strategyID)]
	if !ok {
		return nil, false
	}
	copied := *rec
	return &copied, true
}
