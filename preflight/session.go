package preflight

import (
	"time"
)

// SessionInfo 交易时段分类结果
type SessionInfo struct {
	Name       string
	Open       bool
	Adjustment int // 有符号信心调整（薄流动性为负，主力时段为正）
}

// ClassifySession 按资产类别与UTC时刻分类流动性窗口
// 外汇/指数/贵金属周末休市直接判为 closed；加密货币全天候，仅在深夜窗口扣分。
func ClassifySession(assetClass string, now time.Time) *SessionInfo {
	now = now.UTC()
	hour := now.Hour()
	weekday := now.Weekday()

	if assetClass == "crypto" {
		// 24/7 市场，UTC 深夜流动性偏薄
		if hour >= 0 && hour < 5 {
			return &SessionInfo{Name: "crypto-overnight", Open: true, Adjustment: -5}
		}
		return &SessionInfo{Name: "crypto", Open: true}
	}

	// 外汇市场：周五 21:00 UTC 收盘，周日 21:00 UTC 开盘
	switch weekday {
	case time.Saturday:
		return &SessionInfo{Name: "weekend", Open: false}
	case time.Friday:
		if hour >= 21 {
			return &SessionInfo{Name: "weekend", Open: false}
		}
	case time.Sunday:
		if hour < 21 {
			return &SessionInfo{Name: "weekend", Open: false}
		}
		return &SessionInfo{Name: "sydney-open", Open: true, Adjustment: -5}
	}

	switch {
	case hour >= 22 || hour < 7:
		// 亚洲时段：流动性偏薄
		return &SessionInfo{Name: "asian", Open: true, Adjustment: -5}
	case hour >= 7 && hour < 12:
		// 伦敦时段
		return &SessionInfo{Name: "london", Open: true, Adjustment: 5}
	case hour >= 12 && hour < 16:
		// 伦敦/纽约重叠时段：流动性最佳
		return &SessionInfo{Name: "london-ny-overlap", Open: true, Adjustment: 5}
	case hour >= 16 && hour < 21:
		// 纽约午后
		return &SessionInfo{Name: "new-york", Open: true}
	default:
		// 21-22 尾盘换日窗口
		return &SessionInfo{Name: "rollover", Open: true, Adjustment: -5}
	}
}

// IsThinSession 是否薄流动性时段（目标位压缩用）
func (s *SessionInfo) IsThinSession() bool {
	return s != nil && s.Open && s.Adjustment < 0
}
