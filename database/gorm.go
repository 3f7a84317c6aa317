package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// Config 数据库配置
type Config struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewDatabase 按配置打开数据库并完成迁移
// 回撤状态、决策日志、风控审计、日志镜像四张表在此自动建表。
func NewDatabase(config *Config) (Database, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	// 打开数据库
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&DrawdownState{},
		&DecisionRecord{},
		&RiskCheckRecord{},
		&LogRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveDrawdownState 保存回撤状态（按账户 upsert）
func (g *GormDatabase) SaveDrawdownState(ctx context.Context, state *DrawdownState) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_of_day_equity", "peak_equity", "last_equity", "day_key", "source", "last_updated",
		}),
	}).Create(state).Error
}

// GetDrawdownState 获取回撤状态（不存在时返回 nil）
func (g *GormDatabase) GetDrawdownState(ctx context.Context, accountID string) (*DrawdownState, error) {
	var state DrawdownState
	err := g.db.WithContext(ctx).Where("account_id = ?", accountID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveDecision 保存决策日志
func (g *GormDatabase) SaveDecision(ctx context.Context, decision *DecisionRecord) error {
	return g.db.WithContext(ctx).Create(decision).Error
}

// GetDecisions 获取决策日志
func (g *GormDatabase) GetDecisions(ctx context.Context, filter *DecisionFilter) ([]*DecisionRecord, error) {
	query := g.db.WithContext(ctx).Model(&DecisionRecord{})

	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.StrategyID != "" {
		query = query.Where("strategy_id = ?", filter.StrategyID)
	}
	if filter.Grade != "" {
		query = query.Where("grade = ?", filter.Grade)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var decisions []*DecisionRecord
	if err := query.Find(&decisions).Error; err != nil {
		return nil, err
	}

	return decisions, nil
}

// SaveRiskCheck 保存风控检查记录
func (g *GormDatabase) SaveRiskCheck(ctx context.Context, check *RiskCheckRecord) error {
	return g.db.WithContext(ctx).Create(check).Error
}

// GetRiskChecks 获取风控检查记录
func (g *GormDatabase) GetRiskChecks(ctx context.Context, filter *RiskCheckFilter) ([]*RiskCheckRecord, error) {
	query := g.db.WithContext(ctx).Model(&RiskCheckRecord{})

	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Allowed != nil {
		query = query.Where("allowed = ?", *filter.Allowed)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var checks []*RiskCheckRecord
	if err := query.Find(&checks).Error; err != nil {
		return nil, err
	}

	return checks, nil
}

// SaveLog 保存应用日志
func (g *GormDatabase) SaveLog(ctx context.Context, level, message string) error {
	return g.db.WithContext(ctx).Create(&LogRecord{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}).Error
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
