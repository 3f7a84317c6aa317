package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/URF365LLC/forex-decision-engine--sub000/config"
	"github.com/URF365LLC/forex-decision-engine--sub000/cooldown"
	"github.com/URF365LLC/forex-decision-engine--sub000/database"
	"github.com/URF365LLC/forex-decision-engine--sub000/decision"
	"github.com/URF365LLC/forex-decision-engine--sub000/engine"
	"github.com/URF365LLC/forex-decision-engine--sub000/event"
	"github.com/URF365LLC/forex-decision-engine--sub000/feed"
	"github.com/URF365LLC/forex-decision-engine--sub000/lock"
	"github.com/URF365LLC/forex-decision-engine--sub000/logger"
	"github.com/URF365LLC/forex-decision-engine--sub000/preflight"
	"github.com/URF365LLC/forex-decision-engine--sub000/risk"
	"github.com/URF365LLC/forex-decision-engine--sub000/strategy"
)

// Version 版本号
var Version = "1.2.0"

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	debugMode := flag.Bool("debug", false, "启用调试日志")
	showVersion := flag.Bool("version", false, "打印版本号并退出")
	oneShot := flag.Bool("once", false, "只执行一轮扫描后退出")
	flag.Parse()

	if *showVersion {
		fmt.Printf("RiskGate Signal Engine\nVersion: %s\n", Version)
		os.Exit(0)
	}

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("❌ 加载配置失败: %v", err)
	}

	if *debugMode {
		cfg.System.LogLevel = "debug"
	}
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	loc, err := time.LoadLocation(cfg.System.Timezone)
	if err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，将使用 UTC", cfg.System.Timezone, err)
		loc = time.UTC
	}
	logger.SetLocation(loc)

	logger.Info("✅ 配置加载成功: 账户=%s 规模=%.0f 清单=%d项 策略=%d个",
		cfg.Account.ID, cfg.Account.Size, len(cfg.Watchlist), len(cfg.Strategies))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 数据库
	db, err := database.NewDatabase(&database.Config{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal("❌ 初始化数据库失败: %v", err)
	}
	defer db.Close()

	// 应用日志镜像到数据库（异步，失败不影响主流程）
	logger.InitLogStorage(func(level, message string) {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer saveCancel()
		_ = db.SaveLog(saveCtx, level, message)
	})
	logger.Info("✅ 数据库已就绪: %s", cfg.Database.Type)

	// 3. 分布式锁（未启用时退化为进程内锁）
	locks, err := lock.NewDistributedLock(&lock.Config{
		Enabled:    cfg.DistributedLock.Enabled,
		Type:       cfg.DistributedLock.Type,
		Prefix:     cfg.DistributedLock.Prefix,
		DefaultTTL: time.Duration(cfg.DistributedLock.DefaultTTL) * time.Second,
		Redis: lock.RedisConfig{
			Addr:     cfg.DistributedLock.Redis.Addr,
			Password: cfg.DistributedLock.Redis.Password,
			DB:       cfg.DistributedLock.Redis.DB,
			PoolSize: cfg.DistributedLock.Redis.PoolSize,
		},
	})
	if err != nil {
		logger.Fatal("❌ 初始化分布式锁失败: %v", err)
	}
	defer locks.Close()

	// 4. 核心服务装配
	guard := risk.NewDrawdownGuard(db, locks,
		time.Duration(cfg.DistributedLock.DefaultTTL)*time.Second)
	portfolio := risk.NewPortfolioRiskManager(risk.PortfolioConfig{
		AccountID:         cfg.Account.ID,
		MaxOpenPositions:  cfg.Account.MaxOpenPositions,
		CurrencyCapPct:    cfg.Account.CurrencyCap,
		DailyLossLimitPct: cfg.Account.DailyLossLimit,
		MaxDrawdownPct:    cfg.Account.MaxDrawdown,
	}, guard)

	gate := preflight.NewGate(preflight.Config{
		FreshnessCheck:  cfg.Preflight.FreshnessCheck,
		FreshnessLimits: cfg.Preflight.FreshnessLimits,
		VolatilityFloor: cfg.Preflight.VolatilityFloor,
		VolatilityCeil:  cfg.Preflight.VolatilityCeil,
		HTFEMAPeriod:    cfg.Preflight.HTFEMAPeriod,
		HTFADXPeriod:    cfg.Preflight.HTFADXPeriod,
	})

	gradeSteps := make([]decision.GradeStep, 0, len(cfg.Grading.Steps))
	for _, s := range cfg.Grading.Steps {
		gradeSteps = append(gradeSteps, decision.GradeStep{Grade: s.Grade, MinConfidence: s.MinConfidence})
	}
	builder := decision.NewBuilder(
		decision.NewGradeTable(gradeSteps, cfg.Grading.NoTradeBelow),
		risk.NewPositionSizer(cfg.Account.Leverage),
	)

	bus := event.NewBus(cfg.Upgrades.BufferSize)
	defer bus.Close()
	tracker := event.NewGradeTracker(bus, cfg.Upgrades.HistorySize)
	cooldowns := cooldown.NewService(cfg.Cooldown.DefaultMinutes)
	registry := strategy.BuildRegistry(cfg)

	market := feed.NewCSVFeed(cfg.Feed.DataDir)
	var account engine.AccountData
	if cfg.Feed.AccountFile != "" {
		account = feed.NewFileAccount(cfg.Feed.AccountFile)
		logger.Info("✅ 账户数据源: 文件 %s", cfg.Feed.AccountFile)
	} else {
		account = feed.NewStaticAccount(cfg.Account.Size)
		logger.Info("✅ 账户数据源: 静态权益 %.0f", cfg.Account.Size)
	}

	eng := engine.NewEngine(cfg, engine.Deps{
		Market:    market,
		Account:   account,
		DB:        db,
		Registry:  registry,
		Gate:      gate,
		Builder:   builder,
		Portfolio: portfolio,
		Cooldown:  cooldowns,
		Tracker:   tracker,
	})

	// 5. 升级事件订阅（日志输出；外部执行层可另行订阅）
	go func() {
		for upgrade := range bus.Subscribe() {
			logger.Info("🔔 升级事件 [%s] %s %s: %s",
				upgrade.Type, upgrade.Symbol, upgrade.NewGrade, upgrade.Message)
		}
	}()

	// 6. 配置热更新
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logger.Warn("⚠️ 配置热更新不可用: %v", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("⚠️ 启动配置监听失败: %v", err)
		} else {
			go func() {
				for {
					select {
					case newCfg, ok := <-watcher.Updates():
						if !ok {
							return
						}
						eng.ApplyConfig(newCfg)
					case err, ok := <-watcher.Errors():
						if !ok {
							return
						}
						logger.Warn("⚠️ 配置热更新失败: %v", err)
					case <-ctx.Done():
						return
					}
				}
			}()
			defer watcher.Stop()
			logger.Info("✅ 配置热更新已启用: %s", *configPath)
		}
	}

	// 7. Prometheus 指标
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("✅ 指标服务监听于 %s/metrics", cfg.Metrics.Listen)
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("❌ 指标服务退出: %v", err)
			}
		}()
	}

	// 8. 扫描循环
	if *oneShot {
		eng.Scan(ctx)
		eng.Audit(ctx)
		logger.Info("✅ 单轮扫描完成，退出")
		return
	}

	scanInterval := time.Duration(cfg.Scan.IntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()

		// 启动即扫一轮
		eng.Scan(ctx)
		eng.Audit(ctx)

		for {
			select {
			case <-ticker.C:
				eng.Scan(ctx)
				eng.Audit(ctx)
				cooldowns.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info("✅ 系统初始化完成（扫描间隔 %v），按 Ctrl+C 退出", scanInterval)

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("🛑 收到退出信号，开始优雅关闭...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	logger.Info("👋 已退出")
	logger.Close()
}
