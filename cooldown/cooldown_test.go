package cooldown

import (
	"strings"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC)

func newTestService() (*Service, *time.Time) {
	s := NewService(map[string]int{"scalp": 15, "intraday": 60, "swing": 240})
	now := baseTime
	s.SetClock(func() time.Time { return now })
	return s, &now
}

func TestCooldown_FirstSignalAllowed(t *testing.T) {
	s, _ := newTestService()

	result := s.Check("EURUSD", "intraday", "long", "B", time.Time{})
	if !result.Allowed {
		t.Fatalf("首个信号应放行, 原因: %s", result.Reason)
	}
	if result.Reason != "no prior signal" {
		t.Errorf("放行原因应为 no prior signal, 得到 %q", result.Reason)
	}
}

func TestCooldown_SameGradeBlocked(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})

	// 10分钟后同方向同评级 → 拦截, 剩余50分钟
	*now = now.Add(10 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "B", time.Time{})
	if result.Allowed {
		t.Fatal("冷却窗口内的同评级信号应被拦截")
	}
	if result.Remaining != 50*time.Minute {
		t.Errorf("剩余冷却应为 50m, 得到 %v", result.Remaining)
	}
}

func TestCooldown_GradeUpgradeOverrides(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})

	// 同方向 B → A+ 升级, 冷却期内放行
	*now = now.Add(10 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "A+", time.Time{})
	if !result.Allowed {
		t.Fatalf("评级升级应放行, 原因: %s", result.Reason)
	}
	if !strings.Contains(result.Reason, "Grade upgrade") {
		t.Errorf("放行原因应包含 Grade upgrade, 得到 %q", result.Reason)
	}

	// 升级后冷却条目被覆盖: 再来一个 A 信号(降级)应被拦截
	*now = now.Add(time.Minute)
	result = s.Check("EURUSD", "intraday", "long", "A", time.Time{})
	if result.Allowed {
		t.Fatal("升级后的降级信号应被新冷却窗口拦截")
	}
}

func TestCooldown_DowngradeBlocked(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "A", time.Time{})

	*now = now.Add(10 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "C", time.Time{})
	if result.Allowed {
		t.Fatal("评级降级不应突破冷却")
	}
}

func TestCooldown_DirectionFlipAllowed(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})

	*now = now.Add(10 * time.Minute)
	result := s.Check("EURUSD", "intraday", "short", "B", time.Time{})
	if !result.Allowed {
		t.Fatalf("方向翻转应放行, 原因: %s", result.Reason)
	}
	if !strings.Contains(result.Reason, "direction flip") {
		t.Errorf("放行原因应包含 direction flip, 得到 %q", result.Reason)
	}
}

func TestCooldown_ExpiryAllows(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})

	*now = now.Add(61 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "B", time.Time{})
	if !result.Allowed {
		t.Fatalf("冷却过期后应放行, 原因: %s", result.Reason)
	}
	if result.Reason != "previous cooldown expired" {
		t.Errorf("放行原因应为 previous cooldown expired, 得到 %q", result.Reason)
	}
}

func TestCooldown_NonTradeSignalBypasses(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})
	before, _ := s.Peek("EURUSD", "intraday")

	// no-trade 信号旁路且不触碰状态
	*now = now.Add(10 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "no-trade", time.Time{})
	if !result.Allowed || !result.Bypassed {
		t.Fatal("no-trade 信号应旁路")
	}
	after, _ := s.Peek("EURUSD", "intraday")
	if !before.ExpiresAt.Equal(after.ExpiresAt) {
		t.Error("旁路不应改变存量冷却条目")
	}

	// 无方向同样旁路
	result = s.Check("EURUSD", "intraday", "", "B", time.Time{})
	if !result.Allowed || !result.Bypassed {
		t.Fatal("无方向信号应旁路")
	}
}

func TestCooldown_ExplicitValidityWins(t *testing.T) {
	s, now := newTestService()

	// 决策显式有效期 30 分钟, 优先于风格默认 60 分钟
	s.Check("EURUSD", "intraday", "long", "B", now.Add(30*time.Minute))

	*now = now.Add(31 * time.Minute)
	result := s.Check("EURUSD", "intraday", "long", "B", time.Time{})
	if !result.Allowed {
		t.Fatalf("显式有效期过后应放行, 原因: %s", result.Reason)
	}
}

func TestCooldown_StylesIsolated(t *testing.T) {
	s, _ := newTestService()

	s.Check("EURUSD", "intraday", "long", "B", time.Time{})

	// 同符号不同风格互不影响
	result := s.Check("EURUSD", "swing", "long", "B", time.Time{})
	if !result.Allowed {
		t.Fatalf("不同风格应独立冷却, 原因: %s", result.Reason)
	}
}

func TestCooldown_Sweep(t *testing.T) {
	s, now := newTestService()

	s.Check("EURUSD", "scalp", "long", "B", time.Time{})
	s.Check("GBPUSD", "swing", "long", "B", time.Time{})

	*now = now.Add(20 * time.Minute) // scalp(15m) 过期, swing(240m) 未过期
	if removed := s.Sweep(); removed != 1 {
		t.Errorf("应清理 1 个过期条目, 得到 %d", removed)
	}
	if _, ok := s.Peek("EURUSD", "scalp"); ok {
		t.Error("过期条目应被清理")
	}
	if _, ok := s.Peek("GBPUSD", "swing"); !ok {
		t.Error("未过期条目不应被清理")
	}
}
