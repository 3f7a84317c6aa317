// Package feed 行情与账户数据提供方
// 内置CSV回放数据源，按符号+周期加载K线并派生引擎所需的指标序列。
// 生产部署可用实现了 engine.MarketData / engine.AccountData 的适配器替换。
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
)

// 交易风格对应的K线周期
var styleIntervals = map[string]string{
	"scalp":    "5m",
	"intraday": "15m",
	"swing":    "1h",
}

// 派生指标序列的默认周期
const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	atrPeriod     = 14
	adxPeriod     = 14
	rsiPeriod     = 14
	bandPeriod    = 20
	bandWidth     = 2.0

	htfInterval = "4h"
)

// CSVFeed 基于CSV文件的行情数据源
// 文件命名约定: <dir>/<SYMBOL>_<interval>.csv，每行 time,open,high,low,close,volume。
type CSVFeed struct {
	dir string

	mu    sync.Mutex
	cache map[string]*cacheEntry // 按文件路径缓存，避免每轮扫描重复解析
}

type cacheEntry struct {
	candles []indicators.Candle
	modTime time.Time
}

// NewCSVFeed 创建CSV行情数据源
func NewCSVFeed(dir string) *CSVFeed {
	return &CSVFeed{
		dir:   dir,
		cache: make(map[string]*cacheEntry),
	}
}

// Aligned 返回符号在风格对应周期上的对齐数据视图
func (f *CSVFeed) Aligned(ctx context.Context, symbol, style string) (*indicators.AlignedData, error) {
	interval, ok := styleIntervals[style]
	if !ok {
		return nil, fmt.Errorf("未知交易风格: %s", style)
	}

	candles, err := f.loadCandles(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	return &indicators.AlignedData{
		Symbol:   symbol,
		Style:    style,
		Interval: interval,
		Candles:  candles,
		Series:   buildSeries(candles),
	}, nil
}

// HigherTimeframe 返回用于趋势背景分析的高周期K线
func (f *CSVFeed) HigherTimeframe(ctx context.Context, symbol string) ([]indicators.Candle, error) {
	return f.loadCandles(ctx, symbol, htfInterval)
}

// loadCandles 加载并缓存K线文件（文件变更时重新解析）
func (f *CSVFeed) loadCandles(ctx context.Context, symbol, interval string) ([]indicators.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, fmt.Sprintf("%s_%s.csv", symbol, interval))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("K线文件不可用: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.cache[path]; ok && entry.modTime.Equal(info.ModTime()) {
		return entry.candles, nil
	}

	candles, err := parseCandleFile(path)
	if err != nil {
		return nil, err
	}

	f.cache[path] = &cacheEntry{candles: candles, modTime: info.ModTime()}
	logger.Debug("已加载K线文件 %s（%d 根）", path, len(candles))
	return candles, nil
}

// parseCandleFile 解析CSV格式的K线文件
// 任何一行解析失败都整体失败，宁缺毋滥。
func parseCandleFile(path string) ([]indicators.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开K线文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 6

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析K线文件 %s 失败: %w", path, err)
	}

	candles := make([]indicators.Candle, 0, len(rows))
	for i, row := range rows {
		// 跳过表头
		if i == 0 {
			if _, err := strconv.ParseInt(row[0], 10, 64); err != nil {
				continue
			}
		}

		c, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s 第 %d 行: %w", path, i+1, err)
		}

		// K线必须按时间严格递增
		if len(candles) > 0 && c.Time <= candles[len(candles)-1].Time {
			return nil, fmt.Errorf("%s 第 %d 行: K线时间未递增 (%d <= %d)",
				path, i+1, c.Time, candles[len(candles)-1].Time)
		}
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: K线文件为空", path)
	}
	return candles, nil
}

func parseCandleRow(row []string) (indicators.Candle, error) {
	var c indicators.Candle
	var err error

	if c.Time, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return c, fmt.Errorf("时间戳非法: %q", row[0])
	}
	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, field := range fields {
		if *field, err = strconv.ParseFloat(row[i+1], 64); err != nil {
			return c, fmt.Errorf("数值字段非法: %q", row[i+1])
		}
	}
	if c.High < c.Low || c.Open <= 0 || c.Close <= 0 {
		return c, fmt.Errorf("价格字段非法: open=%v high=%v low=%v close=%v", c.Open, c.High, c.Low, c.Close)
	}
	return c, nil
}

// buildSeries 从K线派生标准指标序列并左补齐到等长
// 序列下标与K线一一对应是对齐视图的硬约束。
func buildSeries(candles []indicators.Candle) map[string][]float64 {
	closes := indicators.ClosePrices(candles)
	want := len(candles)

	series := make(map[string][]float64)
	put := func(name string, values []float64) {
		if padded := padLeft(values, want); padded != nil {
			series[name] = padded
		}
	}

	put("ema_fast", indicators.EMA(closes, emaFastPeriod))
	put("ema_slow", indicators.EMA(closes, emaSlowPeriod))
	put("atr", indicators.NewATR(atrPeriod).Calculate(candles))
	put("adx", indicators.NewADX(adxPeriod).Calculate(candles))
	put("rsi", indicators.RSI(closes, rsiPeriod))

	if bands := indicators.NewBollingerBands(bandPeriod, bandWidth).CalculateMulti(candles); bands != nil {
		put("bb_upper", bands["upper"])
		put("bb_middle", bands["middle"])
		put("bb_lower", bands["lower"])
	}

	return series
}

// padLeft 用首个有效值向左补齐序列到目标长度
func padLeft(values []float64, want int) []float64 {
	if len(values) == 0 || len(values) > want {
		return nil
	}
	if len(values) == want {
		return values
	}

	padded := make([]float64, want)
	fill := values[0]
	for i := 0; i < want-len(values); i++ {
		padded[i] = fill
	}
	copy(padded[want-len(values):], values)
	return padded
}
