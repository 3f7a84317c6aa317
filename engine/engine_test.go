package engine

import (
	"context"
	"testing"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/cooldown"
	"github.com/URF365LLC/forex-decision-engine--sub000/decision"
	"github.com/URF365LLC/forex-decision-engine--sub000/event"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/lock"
	"github.com/URF365LLC/forex-decision-engine--sub000/preflight"
	"github.com/URF365LLC/forex-decision-engine--sub000/risk"
	"github.com/URF365LLC/forex-decision-engine--sub000/strategy"
)

var testClock = time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC)

// fakeMarket 返回预置对齐数据的行情桩
type fakeMarket struct {
	data map[string]*indicators.AlignedData
}

func (m *fakeMarket) Aligned(ctx context.Context, symbol, style string) (*indicators.AlignedData, error) {
	return m.data[symbol], nil
}

func (m *fakeMarket) HigherTimeframe(ctx context.Context, symbol string) ([]indicators.Candle, error) {
	return nil, nil
}

// fakeAccount 固定权益的账户桩
type fakeAccount struct {
	equity float64
}

func (a *fakeAccount) Snapshot(ctx context.Context) (*AccountSnapshot, error) {
	return &AccountSnapshot{Equity: a.equity}, nil
}

// longSignalData 构造触发动量多头信号且能通过门控的对齐数据
func longSignalData(symbol string, n int) *indicators.AlignedData {
	price := 1.1080
	candles := make([]indicators.Candle, n)
	lastOpen := testClock.Add(-time.Minute).Unix()
	fast := make([]float64, n)
	slow := make([]float64, n)
	adx := make([]float64, n)
	for i := 0; i < n; i++ {
		candles[i] = indicators.Candle{
			Time:   lastOpen - int64(n-1-i)*900,
			Open:   price,
			High:   price + 0.001,
			Low:    price - 0.001,
			Close:  price,
			Volume: 1000,
		}
		fast[i] = 1.1050
		slow[i] = 1.1000
		adx[i] = 28
	}
	return &indicators.AlignedData{
		Symbol:   symbol,
		Style:    "intraday",
		Interval: "15m",
		Candles:  candles,
		Series:   map[string][]float64{"ema_fast": fast, "ema_slow": slow, "adx": adx},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Account.ID = "acct-e2e"
	cfg.Account.Size = 10000
	cfg.Account.RiskPercent = 0.5
	cfg.Account.Leverage = 30
	cfg.Account.DailyLossLimit = 4
	cfg.Account.MaxDrawdown = 8
	cfg.Account.MaxOpenPositions = 5
	cfg.Account.CurrencyCap = 2
	cfg.Cooldown.DefaultMinutes = map[string]int{"intraday": 60}
	cfg.Scan.RateLimit = 1000
	cfg.Scan.RateBurst = 10
	cfg.Watchlist = []config.WatchItem{
		{Symbol: "EURUSD", Style: "intraday", Strategy: "momo"},
	}
	cfg.Strategies = []config.StrategyConfig{
		{ID: "momo", Enabled: true, Type: "trend", MinBars: 50,
			Params: map[string]float64{"adx_threshold": 20}},
	}
	return cfg
}

func newTestEngine(cfg *config.Config, market MarketData) *Engine {
	gate := preflight.NewGate(preflight.Config{
		VolatilityFloor: map[string]float64{"forex": 0.15},
		VolatilityCeil:  map[string]float64{"forex": 1.5},
	})
	gate.SetClock(func() time.Time { return testClock })

	guard := risk.NewDrawdownGuard(nil, lock.NewMemoryLock(), 5*time.Second)
	portfolio := risk.NewPortfolioRiskManager(risk.PortfolioConfig{
		AccountID:         cfg.Account.ID,
		MaxOpenPositions:  cfg.Account.MaxOpenPositions,
		CurrencyCapPct:    cfg.Account.CurrencyCap,
		DailyLossLimitPct: cfg.Account.DailyLossLimit,
		MaxDrawdownPct:    cfg.Account.MaxDrawdown,
	}, guard)

	return NewEngine(cfg, Deps{
		Market:    market,
		Account:   &fakeAccount{equity: 10000},
		Registry:  strategy.BuildRegistry(cfg),
		Gate:      gate,
		Builder:   decision.NewBuilder(decision.DefaultGradeTable(), risk.NewPositionSizer(cfg.Account.Leverage)),
		Portfolio: portfolio,
		Cooldown:  cooldown.NewService(cfg.Cooldown.DefaultMinutes),
		Tracker:   event.NewGradeTracker(nil, 10),
	})
}

func TestEngine_FullPipelineProducesDecision(t *testing.T) {
	cfg := testConfig()
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	outcome, err := eng.Evaluate(context.Background(), cfg.Watchlist[0])
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if outcome.Rejected {
		t.Fatalf("不应被拒绝: [%s] %s", outcome.RejectStage, outcome.RejectReason)
	}
	d := outcome.Decision
	if d == nil || !d.IsTradeable() {
		t.Fatalf("应产生可执行决策, 得到 %+v", d)
	}
	if d.Direction != "long" {
		t.Errorf("方向应为 long, 得到 %s", d.Direction)
	}
	if !decision.IsTradeGrade(d.Grade) {
		t.Errorf("评级应可交易, 得到 %s", d.Grade)
	}
	if d.Size.Lots <= 0 {
		t.Errorf("手数应为正, 得到 %v", d.Size.Lots)
	}
	// 首个信号应产生 new-signal 升级事件
	if outcome.Upgrade == nil || outcome.Upgrade.Type != event.UpgradeNewSignal {
		t.Errorf("应产生 new-signal 事件, 得到 %+v", outcome.Upgrade)
	}
}

func TestEngine_SecondSignalCooldownBlocked(t *testing.T) {
	cfg := testConfig()
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	first, err := eng.Evaluate(context.Background(), cfg.Watchlist[0])
	if err != nil || first.Rejected {
		t.Fatalf("首次评估应产生决策: %v %+v", err, first)
	}

	second, err := eng.Evaluate(context.Background(), cfg.Watchlist[0])
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if !second.CooldownBlocked {
		t.Fatalf("重复信号应被冷却拦截, 得到 %+v", second)
	}
	if second.ReasonClass != risk.ReasonClassMarket {
		t.Errorf("冷却拦截分类应为 %s, 得到 %s", risk.ReasonClassMarket, second.ReasonClass)
	}
}

func TestEngine_MisalignedDataRejected(t *testing.T) {
	cfg := testConfig()
	data := longSignalData("EURUSD", 60)
	data.Series["adx"] = data.Series["adx"][:59] // 打破对齐
	market := &fakeMarket{data: map[string]*indicators.AlignedData{"EURUSD": data}}
	eng := newTestEngine(cfg, market)

	outcome, err := eng.Evaluate(context.Background(), cfg.Watchlist[0])
	if err != nil {
		t.Fatalf("数据完整性错误应以拒绝表达: %v", err)
	}
	if !outcome.Rejected {
		t.Fatal("未对齐的数据应被拒绝")
	}
	if outcome.RejectStage != "alignment" {
		t.Errorf("拒绝阶段应为 alignment, 得到 %s", outcome.RejectStage)
	}
	if outcome.ReasonClass != risk.ReasonClassDataIntegrity {
		t.Errorf("拒绝分类应为 %s, 得到 %s", risk.ReasonClassDataIntegrity, outcome.ReasonClass)
	}
	if outcome.Decision != nil {
		t.Error("被拒绝的评估不应产生决策")
	}
}

func TestEngine_UnknownStrategyIsError(t *testing.T) {
	cfg := testConfig()
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	_, err := eng.Evaluate(context.Background(), config.WatchItem{
		Symbol: "EURUSD", Style: "intraday", Strategy: "ghost",
	})
	if err == nil {
		t.Fatal("未注册策略应返回错误")
	}
}

func TestEngine_ScanCollectsResults(t *testing.T) {
	cfg := testConfig()
	cfg.Watchlist = append(cfg.Watchlist,
		config.WatchItem{Symbol: "GBPUSD", Style: "intraday", Strategy: "momo"})
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
		"GBPUSD": longSignalData("GBPUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	result := eng.Scan(context.Background())
	if result.Evaluated != 2 {
		t.Errorf("应评估 2 个条目, 得到 %d", result.Evaluated)
	}
	if len(result.Decisions) != 2 {
		t.Errorf("应产生 2 个决策, 得到 %d", len(result.Decisions))
	}
	if len(result.Upgrades) != 2 {
		t.Errorf("应产生 2 个升级事件, 得到 %d", len(result.Upgrades))
	}
	if len(result.Errors) != 0 {
		t.Errorf("不应有错误, 得到 %v", result.Errors)
	}
}

func TestEngine_ScanHonorsCancellation(t *testing.T) {
	cfg := testConfig()
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := eng.Scan(ctx)
	if result.Evaluated != 0 {
		t.Errorf("取消后不应评估任何条目, 得到 %d", result.Evaluated)
	}
	if len(result.Errors) == 0 {
		t.Error("取消应记录为错误")
	}
}

func TestEngine_ApplyConfigSwapsWatchlist(t *testing.T) {
	cfg := testConfig()
	market := &fakeMarket{data: map[string]*indicators.AlignedData{
		"EURUSD": longSignalData("EURUSD", 60),
	}}
	eng := newTestEngine(cfg, market)

	newCfg := testConfig()
	newCfg.Watchlist = nil
	eng.ApplyConfig(newCfg)

	result := eng.Scan(context.Background())
	if result.Evaluated != 0 {
		t.Errorf("清单清空后不应评估任何条目, 得到 %d", result.Evaluated)
	}
}
