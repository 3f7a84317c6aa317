package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
)

// GradeStep 信心分到评级的映射阶梯（按 min_confidence 降序匹配第一个命中项）
type GradeStep struct {
	Grade         string  `yaml:"grade"`          // 评级，如 A+ / A / B / C
	MinConfidence float64 `yaml:"min_confidence"` // 达到该评级所需的最低信心分
}

// WatchItem 扫描清单条目
type WatchItem struct {
	Symbol   string `yaml:"symbol"`
	Style    string `yaml:"style"`    // intraday / swing / scalp
	Strategy string `yaml:"strategy"` // 策略ID
}

// StrategyConfig 单策略配置（阈值作为数据而非散落常量）
type StrategyConfig struct {
	ID         string             `yaml:"id"`
	Enabled    bool               `yaml:"enabled"`
	Type       string             `yaml:"type"`     // trend / mean_reversion / any
	MinBars    int                `yaml:"min_bars"` // 最少K线数量
	Indicators []string           `yaml:"indicators"`
	Params     map[string]float64 `yaml:"params"`
}

// Config 信号门控与风控引擎配置
type Config struct {
	// 账户配置
	Account struct {
		ID               string  `yaml:"id"`                  // 账户唯一标识
		Size             float64 `yaml:"size"`                // 账户规模（USD）
		RiskPercent      float64 `yaml:"risk_percent"`        // 单笔风险比例（如 0.5 表示 0.5%）
		Leverage         float64 `yaml:"leverage"`            // 杠杆倍数
		DailyLossLimit   float64 `yaml:"daily_loss_limit"`    // 日亏损上限（百分比）
		MaxDrawdown      float64 `yaml:"max_drawdown"`        // 最大回撤上限（百分比）
		MaxOpenPositions int     `yaml:"max_open_positions"`  // 最大持仓数量
		CurrencyCap      float64 `yaml:"currency_cap"`        // 单币种净敞口上限（占账户百分比）
	} `yaml:"account"`

	// 预检门控配置
	Preflight struct {
		FreshnessCheck  bool               `yaml:"freshness_check"`   // 是否启用入场K线新鲜度检查
		FreshnessLimits map[string]int     `yaml:"freshness_limits"`  // 各周期的入场K线最大年龄（分钟）
		VolatilityFloor map[string]float64 `yaml:"volatility_floor"`  // 各资产类别的ATR%下限
		VolatilityCeil  map[string]float64 `yaml:"volatility_ceil"`   // 各资产类别的ATR%上限（超出仅扣分）
		HTFEMAPeriod    int                `yaml:"htf_ema_period"`    // 高周期EMA周期
		HTFADXPeriod    int                `yaml:"htf_adx_period"`    // 高周期ADX周期
	} `yaml:"preflight"`

	// 评级配置
	Grading struct {
		Steps        []GradeStep `yaml:"steps"`          // 信心分→评级阶梯
		NoTradeBelow float64     `yaml:"no_trade_below"` // 低于该信心分不出信号
	} `yaml:"grading"`

	// 冷却配置
	Cooldown struct {
		DefaultMinutes map[string]int `yaml:"default_minutes"` // 各风格的默认冷却时长（分钟）
	} `yaml:"cooldown"`

	// 升级事件配置
	Upgrades struct {
		HistorySize int `yaml:"history_size"` // 升级事件环形缓冲容量
		BufferSize  int `yaml:"buffer_size"`  // 升级事件总线缓冲
	} `yaml:"upgrades"`

	// 扫描配置
	Scan struct {
		IntervalSeconds int     `yaml:"interval_seconds"` // 扫描间隔（秒）
		RateLimit       float64 `yaml:"rate_limit"`       // 每秒评估数量上限（外部数据源限流）
		RateBurst       int     `yaml:"rate_burst"`       // 限流突发容量
	} `yaml:"scan"`

	// 扫描清单
	Watchlist []WatchItem `yaml:"watchlist"`

	// 策略配置
	Strategies []StrategyConfig `yaml:"strategies"`

	// 数据源配置
	Feed struct {
		DataDir     string `yaml:"data_dir"`     // K线CSV目录
		AccountFile string `yaml:"account_file"` // 账户快照JSON路径（为空时使用静态账户）
	} `yaml:"feed"`

	// 数据库配置（支持 SQLite、PostgreSQL、MySQL）
	Database struct {
		Type            string `yaml:"type"`              // 数据库类型: sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 数据源名称，默认 ./data/riskgate.db
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数，默认100
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数，默认10
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（秒），默认3600
		LogLevel        string `yaml:"log_level"`         // 日志级别: silent, error, warn, info，默认 error
	} `yaml:"database"`

	// 分布式锁配置（多实例部署时串行化回撤状态的读改写）
	DistributedLock struct {
		Enabled    bool   `yaml:"enabled"`     // 是否启用分布式锁，默认false（单实例模式）
		Type       string `yaml:"type"`        // 锁类型: redis，默认 redis
		Prefix     string `yaml:"prefix"`      // 锁键前缀，默认 "riskgate:lock:"
		DefaultTTL int    `yaml:"default_ttl"` // 默认锁过期时间（秒），默认5

		Redis struct {
			Addr     string `yaml:"addr"`      // Redis 地址，默认 localhost:6379
			Password string `yaml:"password"`  // Redis 密码，默认为空
			DB       int    `yaml:"db"`        // Redis 数据库，默认0
			PoolSize int    `yaml:"pool_size"` // 连接池大小，默认10
		} `yaml:"redis"`
	} `yaml:"distributed_lock"`

	// 指标配置
	Metrics struct {
		Enabled bool   `yaml:"enabled"` // 是否暴露 Prometheus 指标
		Listen  string `yaml:"listen"`  // 监听地址，默认 :9108
	} `yaml:"metrics"`

	// 系统配置
	System struct {
		LogLevel string `yaml:"log_level"` // 日志级别
		Timezone string `yaml:"timezone"`  // 时区，如 "UTC"
	} `yaml:"system"`
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Account.RiskPercent <= 0 {
		c.Account.RiskPercent = 0.5
	}
	if c.Account.Leverage <= 0 {
		c.Account.Leverage = 30
	}
	if c.Account.DailyLossLimit <= 0 {
		c.Account.DailyLossLimit = 4
	}
	if c.Account.MaxDrawdown <= 0 {
		c.Account.MaxDrawdown = 8
	}
	if c.Account.MaxOpenPositions <= 0 {
		c.Account.MaxOpenPositions = 5
	}
	if c.Account.CurrencyCap <= 0 {
		c.Account.CurrencyCap = 2
	}

	if c.Preflight.FreshnessLimits == nil {
		c.Preflight.FreshnessLimits = map[string]int{
			"15m": 5,
			"1h":  15,
			"4h":  60,
			"1d":  240,
		}
	}
	if c.Preflight.VolatilityFloor == nil {
		c.Preflight.VolatilityFloor = map[string]float64{
			"forex":  0.15,
			"crypto": 0.5,
			"metal":  0.2,
			"index":  0.3,
		}
	}
	if c.Preflight.VolatilityCeil == nil {
		c.Preflight.VolatilityCeil = map[string]float64{
			"forex":  1.5,
			"crypto": 5.0,
			"metal":  2.0,
			"index":  2.5,
		}
	}
	if c.Preflight.HTFEMAPeriod <= 0 {
		c.Preflight.HTFEMAPeriod = 50
	}
	if c.Preflight.HTFADXPeriod <= 0 {
		c.Preflight.HTFADXPeriod = 14
	}

	if len(c.Grading.Steps) == 0 {
		c.Grading.Steps = []GradeStep{
			{Grade: "A+", MinConfidence: 90},
			{Grade: "A", MinConfidence: 80},
			{Grade: "B", MinConfidence: 70},
			{Grade: "C", MinConfidence: 60},
		}
	}
	// 阶梯按阈值降序匹配
	sort.Slice(c.Grading.Steps, func(i, j int) bool {
		return c.Grading.Steps[i].MinConfidence > c.Grading.Steps[j].MinConfidence
	})
	if c.Grading.NoTradeBelow <= 0 {
		c.Grading.NoTradeBelow = 50
	}

	if c.Cooldown.DefaultMinutes == nil {
		c.Cooldown.DefaultMinutes = map[string]int{
			"scalp":    15,
			"intraday": 60,
			"swing":    240,
		}
	}

	if c.Upgrades.HistorySize <= 0 {
		c.Upgrades.HistorySize = 50
	}
	if c.Upgrades.BufferSize <= 0 {
		c.Upgrades.BufferSize = 256
	}

	if c.Scan.IntervalSeconds <= 0 {
		c.Scan.IntervalSeconds = 300
	}
	if c.Scan.RateLimit <= 0 {
		c.Scan.RateLimit = 2
	}
	if c.Scan.RateBurst <= 0 {
		c.Scan.RateBurst = 1
	}

	if c.Feed.DataDir == "" {
		c.Feed.DataDir = "./data/candles"
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data/riskgate.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	if c.DistributedLock.Type == "" {
		c.DistributedLock.Type = "redis"
	}
	if c.DistributedLock.Prefix == "" {
		c.DistributedLock.Prefix = "riskgate:lock:"
	}
	if c.DistributedLock.DefaultTTL <= 0 {
		c.DistributedLock.DefaultTTL = 5
	}
	if c.DistributedLock.Redis.Addr == "" {
		c.DistributedLock.Redis.Addr = "localhost:6379"
	}
	if c.DistributedLock.Redis.PoolSize <= 0 {
		c.DistributedLock.Redis.PoolSize = 10
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9108"
	}

	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("account.id 不能为空")
	}
	if c.Account.Size <= 0 {
		return fmt.Errorf("account.size 必须大于0")
	}
	if c.Account.RiskPercent <= 0 || c.Account.RiskPercent > 10 {
		return fmt.Errorf("account.risk_percent 必须在 (0, 10] 区间内: %.2f", c.Account.RiskPercent)
	}
	if c.Account.DailyLossLimit <= 0 || c.Account.DailyLossLimit >= 100 {
		return fmt.Errorf("account.daily_loss_limit 必须在 (0, 100) 区间内: %.2f", c.Account.DailyLossLimit)
	}
	if c.Account.MaxDrawdown < c.Account.DailyLossLimit {
		return fmt.Errorf("account.max_drawdown 不应小于日亏损上限")
	}
	for i, step := range c.Grading.Steps {
		if step.Grade == "" {
			return fmt.Errorf("grading.steps[%d].grade 不能为空", i)
		}
		if step.MinConfidence < 0 || step.MinConfidence > 100 {
			return fmt.Errorf("grading.steps[%d].min_confidence 必须在 [0, 100] 区间内", i)
		}
	}
	for i, item := range c.Watchlist {
		if item.Symbol == "" || item.Strategy == "" {
			return fmt.Errorf("watchlist[%d] 缺少 symbol 或 strategy", i)
		}
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}

	// 单笔风险超过币种敞口上限时，第一笔满额仓位就会被敞口检查拦死；只告警不拒绝
	if c.Account.RiskPercent > c.Account.CurrencyCap {
		logger.Warn("⚠️ account.risk_percent (%.2f%%) 超过 account.currency_cap (%.2f%%)，单笔满额风险将无法通过敞口检查",
			c.Account.RiskPercent, c.Account.CurrencyCap)
	}
	return nil
}

// StrategyByID 按ID查找策略配置
func (c *Config) StrategyByID(id string) *StrategyConfig {
	for i := range c.Strategies {
		if c.Strategies[i].ID == id {
			return &c.Strategies[i]
		}
	}
	return nil
}
