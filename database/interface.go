package database

import (
	"context"
	"time"
)

// Database 数据库接口
type Database interface {
	// 回撤状态（核心模块中唯一必须持久化的状态）
	SaveDrawdownState(ctx context.Context, state *DrawdownState) error
	GetDrawdownState(ctx context.Context, accountID string) (*DrawdownState, error)

	// 决策日志
	SaveDecision(ctx context.Context, decision *DecisionRecord) error
	GetDecisions(ctx context.Context, filter *DecisionFilter) ([]*DecisionRecord, error)

	// 风控检查记录
	SaveRiskCheck(ctx context.Context, check *RiskCheckRecord) error
	GetRiskChecks(ctx context.Context, filter *RiskCheckFilter) ([]*RiskCheckRecord, error)

	// 应用日志镜像
	SaveLog(ctx context.Context, level, message string) error

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// 数据模型

// DrawdownState 账户回撤状态（每账户一行，日内滚动更新）
type DrawdownState struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID        string    `gorm:"uniqueIndex;size:64" json:"account_id"`
	StartOfDayEquity float64   `json:"start_of_day_equity"`
	PeakEquity       float64   `json:"peak_equity"`
	LastEquity       float64   `json:"last_equity"`
	DayKey           string    `gorm:"size:10" json:"day_key"` // UTC 日期，如 2026-08-29
	Source           string    `gorm:"size:16" json:"source"`  // broker / calculated / unknown
	LastUpdated      time.Time `json:"last_updated"`
}

// DecisionRecord 决策日志（供交易日志/看板等外部协作方读取）
type DecisionRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol     string    `gorm:"index:idx_symbol_strategy_time;size:32" json:"symbol"`
	StrategyID string    `gorm:"index:idx_symbol_strategy_time;size:64" json:"strategy_id"`
	Direction  string    `gorm:"size:8" json:"direction"` // long / short
	Grade      string    `gorm:"size:8" json:"grade"`
	Confidence float64   `json:"confidence"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	Target     float64   `json:"target"`
	RMultiple  float64   `json:"r_multiple"`
	Lots       float64   `json:"lots"`
	RiskAmount float64   `json:"risk_amount"`
	Warnings   string    `gorm:"type:text" json:"warnings"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `gorm:"index:idx_symbol_strategy_time" json:"created_at"`
}

// RiskCheckRecord 风控检查记录
type RiskCheckRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   string    `gorm:"index;size:64" json:"account_id"`
	Symbol      string    `gorm:"index;size:32" json:"symbol"`
	Allowed     bool      `gorm:"index" json:"allowed"`
	Reason      string    `gorm:"type:text" json:"reason"`
	ReasonClass string    `gorm:"size:32" json:"reason_class"` // data_integrity / market_condition / risk_limit / sizing
	Details     string    `gorm:"type:text" json:"details"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// LogRecord 应用日志记录
type LogRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string    `gorm:"index;size:8" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// 过滤器

// DecisionFilter 决策日志过滤器
type DecisionFilter struct {
	Symbol     string
	StrategyID string
	Grade      string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// RiskCheckFilter 风控记录过滤器
type RiskCheckFilter struct {
	AccountID string
	Symbol    string
	Allowed   *bool
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
