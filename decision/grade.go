// Package decision 决策构建与评级
package decision

import (
	"math"
)

// GradeNoTrade 不交易评级
const GradeNoTrade = "no-trade"

// GradeStep 信心分→评级阶梯（按 MinConfidence 降序排列）
type GradeStep struct {
	Grade         string
	MinConfidence float64
}

// GradeTable 评级映射表（阶梯函数，阈值是配置数据而非写死逻辑）
type GradeTable struct {
	steps        []GradeStep
	noTradeBelow float64
}

// NewGradeTable 创建评级映射表
// steps 必须按 MinConfidence 降序；低于 noTradeBelow 的信心分不产生交易信号。
func NewGradeTable(steps []GradeStep, noTradeBelow float64) *GradeTable {
	return &GradeTable{steps: steps, noTradeBelow: noTradeBelow}
}

// DefaultGradeTable 默认评级表
func DefaultGradeTable() *GradeTable {
	return NewGradeTable([]GradeStep{
		{Grade: "A+", MinConfidence: 90},
		{Grade: "A", MinConfidence: 80},
		{Grade: "B", MinConfidence: 70},
		{Grade: "C", MinConfidence: 60},
	}, 50)
}

// Grade 按信心分求评级（阶梯降序取第一个命中项）
func (t *GradeTable) Grade(confidence float64) string {
	if confidence < t.noTradeBelow {
		return GradeNoTrade
	}
	for _, step := range t.steps {
		if confidence >= step.MinConfidence {
			return step.Grade
		}
	}
	return GradeNoTrade
}

// gradeRanks 固定的评级序数（冷却覆盖与升级检测共用）
var gradeRanks = map[string]int{
	GradeNoTrade: 0,
	"":           0,
	"C":          1,
	"B":          2,
	"A":          3,
	"A+":         4,
}

// GradeRank 评级在固定序数表上的位置（未知评级按0处理）
func GradeRank(grade string) int {
	return gradeRanks[grade]
}

// IsTradeGrade 是否可交易评级
func IsTradeGrade(grade string) bool {
	return GradeRank(grade) > 0
}

// ClampConfidence 将信心分夹取到 [0, 100]
func ClampConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) {
		return 0
	}
	return math.Max(0, math.Min(100, confidence))
}
