package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/lock"
)

func newTestPortfolio(maxPositions int, currencyCap float64) *PortfolioRiskManager {
	guard := NewDrawdownGuard(nil, lock.NewMemoryLock(), 5*time.Second)
	return NewPortfolioRiskManager(PortfolioConfig{
		AccountID:         "acct-pf",
		MaxOpenPositions:  maxPositions,
		CurrencyCapPct:    currencyCap,
		DailyLossLimitPct: 4,
		MaxDrawdownPct:    8,
	}, guard)
}

func TestPortfolio_CurrencyCapNetting(t *testing.T) {
	p := newTestPortfolio(5, 2)
	ctx := context.Background()

	// 已有两笔 EUR 多头敞口, 各0.8%: EURUSD 多 + EURGBP 多
	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 80})
	p.AddPosition(&Position{Symbol: "EURGBP", Direction: "long", RiskAmount: 80})

	// 候选 EURJPY 多头 0.5% → EUR 净敞口 2.1% >= 2% → 拦截
	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "EURJPY",
		Direction:   "long",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if result.Allowed {
		t.Fatal("EUR 净敞口超限应被拦截")
	}
	if !strings.Contains(result.Reason, "Currency exposure cap exceeded") {
		t.Errorf("拒绝原因应包含 Currency exposure cap exceeded, 得到 %q", result.Reason)
	}
	if !strings.Contains(result.Reason, "EUR") {
		t.Errorf("拒绝原因应点名币种 EUR, 得到 %q", result.Reason)
	}
	if result.ReasonClass != ReasonClassRiskLimit {
		t.Errorf("拒绝分类应为 %s, 得到 %s", ReasonClassRiskLimit, result.ReasonClass)
	}
}

// 既有 EUR 敞口已超限时, 不推高 EUR 的候选交易不受株连
func TestPortfolio_UnrelatedCurrencyUnaffectedByCapBreach(t *testing.T) {
	p := newTestPortfolio(5, 2)
	ctx := context.Background()

	// EUR 净敞口已达 2.4%, 超过 2% 上限
	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 120})
	p.AddPosition(&Position{Symbol: "EURGBP", Direction: "long", RiskAmount: 120})

	// 候选 USDJPY 多头 0.5% 不触及 EUR, 应放行并对既有超限记警告
	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "USDJPY",
		Direction:   "long",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("与超限币种无关的交易不应被拦截: %s", result.Reason)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "EUR") {
			found = true
		}
	}
	if !found {
		t.Errorf("既有 EUR 超限应体现为警告, 得到 %v", result.Warnings)
	}
	// 敞口快照仍记录超限币种的真实水平
	if result.CurrencyExposures["EUR"] < 2.4-1e-9 {
		t.Errorf("EUR 敞口快照应为 2.4%%, 得到 %.2f", result.CurrencyExposures["EUR"])
	}
}

func TestPortfolio_ShortNetsAgainstLong(t *testing.T) {
	p := newTestPortfolio(5, 2)
	ctx := context.Background()

	// EURUSD 多 1.5% 与 EURGBP 空 1.0% 轧差后 EUR 净敞口仅 0.5%
	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 150})
	p.AddPosition(&Position{Symbol: "EURGBP", Direction: "short", RiskAmount: 100})

	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "EURJPY",
		Direction:   "long",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	// EUR 净敞口 = +150 -100 +50 = 100 → 1.0% < 2%
	// USD 净敞口 = -150 → 1.5% < 2%
	if !result.Allowed {
		t.Fatalf("轧差后未超限应放行, 原因: %s", result.Reason)
	}
	if pct := result.CurrencyExposures["EUR"]; pct != 1.0 {
		t.Errorf("EUR 净敞口应为 1.0%%, 得到 %.2f%%", pct)
	}
}

func TestPortfolio_MaxOpenPositions(t *testing.T) {
	p := newTestPortfolio(2, 50)
	ctx := context.Background()

	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 50})
	p.AddPosition(&Position{Symbol: "GBPUSD", Direction: "long", RiskAmount: 50})

	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "USDJPY",
		Direction:   "short",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if result.Allowed {
		t.Fatal("持仓数量达到上限应拦截")
	}
	if !strings.Contains(result.Reason, "Max open positions reached") {
		t.Errorf("拒绝原因应包含 Max open positions reached, 得到 %q", result.Reason)
	}
}

func TestPortfolio_IndexBucketExposure(t *testing.T) {
	p := newTestPortfolio(5, 2)
	ctx := context.Background()

	// US500 与 NAS100 归并到同一个 US-IDX 桶
	p.AddPosition(&Position{Symbol: "US500", Direction: "long", RiskAmount: 120})

	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "NAS100",
		Direction:   "long",
		RiskPercent: 1.0,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	// US-IDX 净敞口 = 120 + 100 = 220 → 2.2% >= 2% → 拦截
	if result.Allowed {
		t.Fatal("指数桶净敞口超限应拦截")
	}
	if !strings.Contains(result.Reason, "US-IDX") {
		t.Errorf("拒绝原因应点名 US-IDX 桶, 得到 %q", result.Reason)
	}
}

func TestPortfolio_BypassLogsAndAllows(t *testing.T) {
	p := newTestPortfolio(1, 2)
	ctx := context.Background()

	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 50})

	// 绕过开关必须显式置位才放行, 且附带警告
	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "GBPUSD",
		Direction:   "long",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
		Bypass:      true,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("绕过模式下应放行, 原因: %s", result.Reason)
	}
	if len(result.Warnings) == 0 {
		t.Error("绕过放行必须附带警告")
	}
}

func TestPortfolio_AuditExposureWarnsOnly(t *testing.T) {
	p := newTestPortfolio(5, 2)

	// 1.6% 处于 75%-100% 预警区间
	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 160})

	result := p.AuditExposure(10000)
	if !result.Allowed {
		t.Fatal("巡检永远不拦截")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "EUR") {
			found = true
		}
	}
	if !found {
		t.Errorf("应对 EUR 敞口给出预警, 得到 %v", result.Warnings)
	}
}

func TestPortfolio_RemovePosition(t *testing.T) {
	p := newTestPortfolio(1, 50)
	ctx := context.Background()

	p.AddPosition(&Position{Symbol: "EURUSD", Direction: "long", RiskAmount: 50})
	p.RemovePosition("EURUSD")

	result, err := p.CheckNewTrade(ctx, &TradeCheckInput{
		Symbol:      "GBPUSD",
		Direction:   "long",
		RiskPercent: 0.5,
		AccountSize: 10000,
		Equity:      10000,
	})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("平仓后应放行, 原因: %s", result.Reason)
	}
}
