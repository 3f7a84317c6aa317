package strategy

import (
	"fmt"
	"sync"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/indicators"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
)

// RawSignal 策略产生的原始信号（未经门控与风控处理）
type RawSignal struct {
	Direction   string   // long / short
	Confidence  float64  // 信心分 0-100
	Triggers    []string // 触发条件描述
	ReasonCodes []string // 机器可读的触发原因码
}

// Strategy 信号策略接口
// Evaluate 只读取对齐后的数据视图，不得修改；无信号时返回 (nil, nil)。
type Strategy interface {
	ID() string
	Type() string // trend / mean_reversion
	RequiredIndicators() []string
	MinBars() int
	Evaluate(data *indicators.AlignedData) (*RawSignal, error)
}

// Registry 策略注册表
type Registry struct {
	strategies map[string]Strategy
	mu         sync.RWMutex
}

// NewRegistry 创建策略注册表
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register 注册策略（同ID重复注册会覆盖并告警）
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.ID()]; exists {
		logger.Warn("⚠️ 策略 %s 已存在，注册将覆盖旧实例", s.ID())
	}
	r.strategies[s.ID()] = s
}

// Get 按ID获取策略
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("未注册的策略: %s", id)
	}
	return s, nil
}

// List 返回所有已注册的策略ID
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	return ids
}

// BuildRegistry 根据配置构建注册表并装配内置策略
func BuildRegistry(cfg *config.Config) *Registry {
	reg := NewRegistry()

	for i := range cfg.Strategies {
		sc := &cfg.Strategies[i]
		if !sc.Enabled {
			logger.Info("策略 %s 已禁用，跳过注册", sc.ID)
			continue
		}

		switch sc.Type {
		case "trend":
			reg.Register(NewMomentumStrategy(sc))
		case "mean_reversion":
			reg.Register(NewMeanReversionStrategy(sc))
		default:
			logger.Warn("⚠️ 未知策略类型 %s（策略 %s），跳过", sc.Type, sc.ID)
		}
	}

	return reg
}

// paramOr 从策略参数表中取值，缺失时使用默认值
func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
