package indicators

import (
	"math"
	"strings"
	"testing"
	"time"
)

func testAligned(n int) *AlignedData {
	candles := make([]Candle, n)
	series := make([]float64, n)
	for i := 0; i < n; i++ {
		candles[i] = Candle{Time: int64(i * 900), Close: 1.10}
		series[i] = float64(i)
	}
	return &AlignedData{
		Symbol:   "EURUSD",
		Style:    "intraday",
		Interval: "15m",
		Candles:  candles,
		Series:   map[string][]float64{"atr": series},
	}
}

func TestAligned_ValidatePasses(t *testing.T) {
	data := testAligned(20)
	if err := data.Validate("atr"); err != nil {
		t.Fatalf("对齐数据应通过校验: %v", err)
	}
}

func TestAligned_MissingRequiredSeries(t *testing.T) {
	data := testAligned(20)
	err := data.Validate("atr", "adx")
	if err == nil {
		t.Fatal("缺少必需序列应硬失败")
	}
	if !strings.Contains(err.Error(), "adx") {
		t.Errorf("错误应点名缺失的序列, 得到 %v", err)
	}
}

func TestAligned_LengthMismatchHardFails(t *testing.T) {
	data := testAligned(20)
	data.Series["ema"] = make([]float64, 19) // 差一个也不行

	err := data.Validate()
	if err == nil {
		t.Fatal("序列长度不一致应硬失败")
	}
	ae, ok := err.(*AlignmentError)
	if !ok {
		t.Fatalf("应返回 *AlignmentError, 得到 %T", err)
	}
	if ae.Got != 19 || ae.Want != 20 {
		t.Errorf("错误应携带长度信息, 得到 got=%d want=%d", ae.Got, ae.Want)
	}
}

func TestAligned_ValidateChecksAllSeries(t *testing.T) {
	// 未列入 required 的序列一样要求等长
	data := testAligned(20)
	data.Series["extra"] = make([]float64, 5)

	if err := data.Validate("atr"); err == nil {
		t.Fatal("任何存量序列长度不一致都应失败")
	}
}

func TestAligned_LastAndAt(t *testing.T) {
	data := testAligned(20)

	if v, ok := data.Last("atr"); !ok || v != 19 {
		t.Errorf("Last 应返回最新值 19, 得到 %v (%v)", v, ok)
	}
	if v, ok := data.At("atr", 5); !ok || v != 5 {
		t.Errorf("At(5) 应返回 5, 得到 %v (%v)", v, ok)
	}
	if _, ok := data.Last("missing"); ok {
		t.Error("缺失序列的 Last 应返回 false")
	}
	if _, ok := data.At("atr", 20); ok {
		t.Error("越界下标应返回 false")
	}
}

func TestIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for interval, want := range cases {
		got, err := IntervalDuration(interval)
		if err != nil || got != want {
			t.Errorf("%s: 应为 %v, 得到 %v (%v)", interval, want, got, err)
		}
	}
	if _, err := IntervalDuration("3w"); err == nil {
		t.Error("未知周期应返回错误")
	}
}

func TestEMA_ConvergesToConstant(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 100
	}
	ema := EMA(values, 10)
	if len(ema) == 0 {
		t.Fatal("EMA 不应为空")
	}
	if last := ema[len(ema)-1]; math.Abs(last-100) > 1e-9 {
		t.Errorf("常数序列的 EMA 应为 100, 得到 %v", last)
	}
}

func TestRSI_Extremes(t *testing.T) {
	// 单边上涨 → RSI 100
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsi := RSI(up, 14)
	if len(rsi) != len(up) {
		t.Fatalf("RSI 序列应与输入等长, 得到 %d", len(rsi))
	}
	if last := rsi[len(rsi)-1]; last != 100 {
		t.Errorf("单边上涨的 RSI 应为 100, 得到 %v", last)
	}

	// 单边下跌 → RSI 0
	down := make([]float64, 30)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	rsi = RSI(down, 14)
	if last := rsi[len(rsi)-1]; last != 0 {
		t.Errorf("单边下跌的 RSI 应为 0, 得到 %v", last)
	}
}

func TestATR_ReflectsRange(t *testing.T) {
	candles := make([]Candle, 30)
	for i := range candles {
		candles[i] = Candle{
			Time: int64(i * 900),
			Open: 100, High: 101, Low: 99, Close: 100,
		}
	}
	atr := NewATR(14).CurrentATR(candles)
	// 每根K线的真实波幅都是 2
	if math.Abs(atr-2) > 1e-9 {
		t.Errorf("恒定区间的 ATR 应为 2, 得到 %v", atr)
	}
}
