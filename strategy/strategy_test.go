package strategy

import (
	"testing"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
)

func momentumData(fast, slow, adx, close float64, n int) *indicators.AlignedData {
	candles := make([]indicators.Candle, n)
	fastSeries := make([]float64, n)
	slowSeries := make([]float64, n)
	adxSeries := make([]float64, n)
	for i := 0; i < n; i++ {
		candles[i] = indicators.Candle{Time: int64(i * 900), Open: close, High: close, Low: close, Close: close}
		fastSeries[i] = fast
		slowSeries[i] = slow
		adxSeries[i] = adx
	}
	return &indicators.AlignedData{
		Symbol:   "EURUSD",
		Interval: "15m",
		Candles:  candles,
		Series: map[string][]float64{
			"ema_fast": fastSeries,
			"ema_slow": slowSeries,
			"adx":      adxSeries,
		},
	}
}

func newMomentum() *MomentumStrategy {
	return NewMomentumStrategy(&config.StrategyConfig{
		ID:      "momo",
		Type:    "trend",
		MinBars: 20,
		Params:  map[string]float64{"adx_threshold": 20},
	})
}

func TestMomentum_LongSignal(t *testing.T) {
	ms := newMomentum()

	// 快线在慢线上方且价格在快线上方, ADX 够强 → 多头
	data := momentumData(1.1050, 1.1000, 28, 1.1080, 60)
	raw, err := ms.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw == nil {
		t.Fatal("应产生信号")
	}
	if raw.Direction != "long" {
		t.Errorf("方向应为 long, 得到 %s", raw.Direction)
	}
	if raw.Confidence <= 55 {
		t.Errorf("信心分应高于基础分, 得到 %v", raw.Confidence)
	}
	if len(raw.Triggers) == 0 || len(raw.ReasonCodes) == 0 {
		t.Error("信号应携带触发条件与原因码")
	}
}

func TestMomentum_ShortSignal(t *testing.T) {
	ms := newMomentum()

	data := momentumData(1.0950, 1.1000, 28, 1.0920, 60)
	raw, err := ms.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw == nil || raw.Direction != "short" {
		t.Fatalf("应产生空头信号, 得到 %+v", raw)
	}
}

func TestMomentum_WeakADXNoSignal(t *testing.T) {
	ms := newMomentum()

	// ADX 低于阈值 → 无信号且无错误
	data := momentumData(1.1050, 1.1000, 15, 1.1080, 60)
	raw, err := ms.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw != nil {
		t.Errorf("趋势强度不足不应出信号, 得到 %+v", raw)
	}
}

func TestMomentum_InsufficientBars(t *testing.T) {
	ms := newMomentum()

	data := momentumData(1.1050, 1.1000, 28, 1.1080, 10)
	if _, err := ms.Evaluate(data); err == nil {
		t.Fatal("K线不足应返回错误")
	}
}

func meanRevData(close, upper, middle, lower, rsi float64, n int) *indicators.AlignedData {
	candles := make([]indicators.Candle, n)
	up := make([]float64, n)
	mid := make([]float64, n)
	low := make([]float64, n)
	rsiSeries := make([]float64, n)
	for i := 0; i < n; i++ {
		candles[i] = indicators.Candle{Time: int64(i * 900), Open: close, High: close, Low: close, Close: close}
		up[i], mid[i], low[i], rsiSeries[i] = upper, middle, lower, rsi
	}
	return &indicators.AlignedData{
		Symbol:   "EURUSD",
		Interval: "15m",
		Candles:  candles,
		Series: map[string][]float64{
			"bb_upper":  up,
			"bb_middle": mid,
			"bb_lower":  low,
			"rsi":       rsiSeries,
		},
	}
}

func newMeanRev() *MeanReversionStrategy {
	return NewMeanReversionStrategy(&config.StrategyConfig{
		ID:      "meanrev",
		Type:    "mean_reversion",
		MinBars: 20,
	})
}

func TestMeanReversion_LongAtLowerBand(t *testing.T) {
	mrs := newMeanRev()

	// 收盘跌破下轨且 RSI 超卖 → 多头回归
	data := meanRevData(1.0940, 1.1060, 1.1000, 1.0950, 25, 60)
	raw, err := mrs.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw == nil || raw.Direction != "long" {
		t.Fatalf("应产生多头信号, 得到 %+v", raw)
	}
}

func TestMeanReversion_ShortAtUpperBand(t *testing.T) {
	mrs := newMeanRev()

	data := meanRevData(1.1070, 1.1060, 1.1000, 1.0950, 75, 60)
	raw, err := mrs.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw == nil || raw.Direction != "short" {
		t.Fatalf("应产生空头信号, 得到 %+v", raw)
	}
}

func TestMeanReversion_InsideBandNoSignal(t *testing.T) {
	mrs := newMeanRev()

	data := meanRevData(1.1000, 1.1060, 1.1000, 1.0950, 50, 60)
	raw, err := mrs.Evaluate(data)
	if err != nil {
		t.Fatalf("评估失败: %v", err)
	}
	if raw != nil {
		t.Errorf("带内价格不应出信号, 得到 %+v", raw)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newMomentum())

	if _, err := reg.Get("momo"); err != nil {
		t.Errorf("应找到已注册策略: %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Error("未注册策略应返回错误")
	}
	if ids := reg.List(); len(ids) != 1 || ids[0] != "momo" {
		t.Errorf("List 应返回 [momo], 得到 %v", ids)
	}
}

func TestBuildRegistry_SkipsDisabledAndUnknown(t *testing.T) {
	cfg := &config.Config{
		Strategies: []config.StrategyConfig{
			{ID: "momo", Enabled: true, Type: "trend"},
			{ID: "off", Enabled: false, Type: "trend"},
			{ID: "weird", Enabled: true, Type: "astrology"},
			{ID: "meanrev", Enabled: true, Type: "mean_reversion"},
		},
	}
	reg := BuildRegistry(cfg)

	if _, err := reg.Get("momo"); err != nil {
		t.Error("启用的趋势策略应被注册")
	}
	if _, err := reg.Get("meanrev"); err != nil {
		t.Error("启用的均值回归策略应被注册")
	}
	if _, err := reg.Get("off"); err == nil {
		t.Error("禁用的策略不应被注册")
	}
	if _, err := reg.Get("weird"); err == nil {
		t.Error("未知类型的策略不应被注册")
	}
}
