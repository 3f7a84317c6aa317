// Package cooldown 信号去重与冷却窗口
// 以 (符号, 风格) 为键的状态机：absent / active / expired。
// 方向翻转或评级升档可以突破未到期的冷却窗口。
package cooldown

import (
	"fmt"
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/decision"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/metrics"
)

// Entry 冷却条目
type Entry struct {
	Direction string
	Grade     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CheckResult 冷却检查结果
type CheckResult struct {
	Allowed   bool
	Bypassed  bool          // 非交易信号直接旁路（不触碰状态）
	Reason    string        // 放行/拦截的说明
	Remaining time.Duration // 被拦截时的剩余冷却时长
}

// Service 冷却服务
type Service struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	defaults map[string]time.Duration // 风格 → 默认冷却时长
	fallback time.Duration
	now      func() time.Time
}

// NewService 创建冷却服务
func NewService(defaultMinutes map[string]int) *Service {
	defaults := make(map[string]time.Duration, len(defaultMinutes))
	for style, minutes := range defaultMinutes {
		defaults[style] = time.Duration(minutes) * time.Minute
	}
	return &Service{
		entries:  make(map[string]*Entry),
		defaults: defaults,
		fallback: time.Hour,
		now:      time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func key(symbol, style string) string {
	return symbol + "|" + style
}

// Check 检查并登记一个新信号
// 非交易信号（无方向或 no-trade 评级）永远旁路，不做任何状态变更。
// 放行的信号会覆盖存量条目；validTo 非零时按其设定过期，否则用风格默认时长。
func (s *Service) Check(symbol, style, direction, grade string, validTo time.Time) *CheckResult {
	if direction == "" || !decision.IsTradeGrade(grade) {
		return &CheckResult{Allowed: true, Bypassed: true, Reason: "non-trade signal"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key(symbol, style)
	entry := s.entries[k]

	var reason string
	switch {
	case entry == nil:
		reason = "no prior signal"
	case !now.Before(entry.ExpiresAt):
		reason = "previous cooldown expired"
	case entry.Direction != direction:
		reason = fmt.Sprintf("direction flip: %s -> %s", entry.Direction, direction)
	case decision.GradeRank(grade) > decision.GradeRank(entry.Grade):
		reason = fmt.Sprintf("Grade upgrade: %s -> %s", entry.Grade, grade)
	default:
		remaining := entry.ExpiresAt.Sub(now)
		metrics.RecordCooldownBlock(symbol, style)
		logger.Debug("冷却拦截 %s/%s: %s %s 仍在窗口内，剩余 %s",
			symbol, style, entry.Direction, entry.Grade, remaining.Round(time.Second))
		return &CheckResult{
			Reason:    fmt.Sprintf("cooldown active: %s %s signal within window", entry.Direction, entry.Grade),
			Remaining: remaining,
		}
	}

	expiresAt := validTo
	if expiresAt.IsZero() || !expiresAt.After(now) {
		d, ok := s.defaults[style]
		if !ok {
			d = s.fallback
		}
		expiresAt = now.Add(d)
	}

	s.entries[k] = &Entry{
		Direction: direction,
		Grade:     grade,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	return &CheckResult{Allowed: true, Reason: reason}
}

// Peek 查看冷却条目（只读，不触发状态变更）
func (s *Service) Peek(symbol, style string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key(symbol, style)]
	if !ok {
		return nil, false
	}
	copied := *entry
	return &copied, true
}

// Clear 显式清除冷却条目
func (s *Service) Clear(symbol, style string) {
	s.mu.Lock()
	delete(s.entries, key(symbol, style))
	s.mu.Unlock()
}

// Sweep 清理所有已过期条目，返回清理数量
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
