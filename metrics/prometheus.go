// Package metrics Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 信号评估指标
	evaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_evaluation_total",
			Help: "Total number of signal evaluations",
		},
		[]string{"symbol", "strategy"},
	)

	rejectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_rejection_total",
			Help: "Total number of rejected evaluations by stage and reason class",
		},
		[]string{"symbol", "stage", "reason_class"},
	)

	decisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_decision_total",
			Help: "Total number of decisions produced by grade",
		},
		[]string{"symbol", "strategy", "grade", "direction"},
	)

	cooldownBlockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_cooldown_block_total",
			Help: "Total number of signals blocked by the cooldown window",
		},
		[]string{"symbol", "style"},
	)

	upgradeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_grade_upgrade_total",
			Help: "Total number of detected grade upgrades",
		},
		[]string{"symbol", "strategy", "upgrade_type"},
	)

	// 风控指标
	drawdownDaily = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_drawdown_daily_percent",
			Help: "Current daily drawdown as percent of start-of-day equity",
		},
		[]string{"account"},
	)

	drawdownTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_drawdown_total_percent",
			Help: "Current total drawdown as percent of peak equity",
		},
		[]string{"account"},
	)

	currencyExposure = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_currency_exposure_percent",
			Help: "Net currency exposure as percent of account size",
		},
		[]string{"account", "currency"},
	)

	riskBlockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_risk_block_total",
			Help: "Total number of trades blocked by account-level risk limits",
		},
		[]string{"account", "reason_class"},
	)

	// 扫描指标
	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskgate_scan_duration_seconds",
			Help:    "Batch scan duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"strategy"},
	)
)

// RecordEvaluation 记录一次信号评估
func RecordEvaluation(symbol, strategy string) {
	evaluationTotal.WithLabelValues(symbol, strategy).Inc()
}

// RecordRejection 记录一次拒绝
func RecordRejection(symbol, stage, reasonClass string) {
	rejectionTotal.WithLabelValues(symbol, stage, reasonClass).Inc()
}

// RecordDecision 记录一次产出的决策
func RecordDecision(symbol, strategy, grade, direction string) {
	decisionTotal.WithLabelValues(symbol, strategy, grade, direction).Inc()
}

// RecordCooldownBlock 记录一次冷却拦截
func RecordCooldownBlock(symbol, style string) {
	cooldownBlockTotal.WithLabelValues(symbol, style).Inc()
}

// RecordUpgrade 记录一次评级升级
func RecordUpgrade(symbol, strategy, upgradeType string) {
	upgradeTotal.WithLabelValues(symbol, strategy, upgradeType).Inc()
}

// SetDrawdown 更新回撤指标
func SetDrawdown(account string, dailyPct, totalPct float64) {
	drawdownDaily.WithLabelValues(account).Set(dailyPct)
	drawdownTotal.WithLabelValues(account).Set(totalPct)
}

// SetCurrencyExposure 更新币种净敞口指标
func SetCurrencyExposure(account, currency string, pct float64) {
	currencyExposure.WithLabelValues(account, currency).Set(pct)
}

// RecordRiskBlock 记录一次风控拦截
func RecordRiskBlock(account, reasonClass string) {
	riskBlockTotal.WithLabelValues(account, reasonClass).Inc()
}

// ObserveScanDuration 记录扫描耗时
func ObserveScanDuration(strategy string, d time.Duration) {
	scanDuration.WithLabelValues(strategy).Observe(d.Seconds())
}
