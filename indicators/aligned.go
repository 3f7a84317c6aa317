package indicators

import (
	"fmt"
	"time"
)

// AlignedData 行情数据与指标序列的对齐视图
// 约束：每个指标序列的长度必须与K线序列一一对应，序列下标 i 指向第 i 根K线。
// 违反该约束是数据完整性错误，必须硬失败，不允许继续计算。
type AlignedData struct {
	Symbol   string
	Style    string
	Interval string // K线周期，如 "15m" / "1h" / "4h"
	Candles  []Candle
	Series   map[string][]float64 // 按名称索引的指标序列（复合指标拆为多条，如 stoch_k / stoch_d）
}

// AlignmentError 序列对齐错误
type AlignmentError struct {
	Symbol string
	Series string
	Got    int
	Want   int
}

func (e *AlignmentError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("%s: 缺少必需指标序列 %q", e.Symbol, e.Series)
	}
	return fmt.Sprintf("%s: 指标序列 %q 长度 %d 与K线数量 %d 不一致", e.Symbol, e.Series, e.Got, e.Want)
}

// Validate 校验所有指标序列与K线严格对齐
// required 中列出的序列必须存在；所有已存在的序列都必须等长。
func (d *AlignedData) Validate(required ...string) error {
	want := len(d.Candles)

	for _, name := range required {
		if _, ok := d.Series[name]; !ok {
			return &AlignmentError{Symbol: d.Symbol, Series: name, Got: -1, Want: want}
		}
	}

	for name, series := range d.Series {
		if len(series) != want {
			return &AlignmentError{Symbol: d.Symbol, Series: name, Got: len(series), Want: want}
		}
	}

	return nil
}

// Last 取某条指标序列的最新值
func (d *AlignedData) Last(name string) (float64, bool) {
	series, ok := d.Series[name]
	if !ok || len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// At 取某条指标序列在下标 i 处的值
func (d *AlignedData) At(name string, i int) (float64, bool) {
	series, ok := d.Series[name]
	if !ok || i < 0 || i >= len(series) {
		return 0, false
	}
	return series[i], true
}

// IntervalDuration 解析K线周期字符串为时长
func IntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("不支持的K线周期: %s", interval)
	}
}
