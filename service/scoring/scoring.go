/*
 * @module service/scoring/scoring
 * @description 健康分引擎，将检查结果按类别加权聚合为数据集健康分
 * @architecture 服务层 - 纯函数计算
 * @documentReference dev_docs/requirements.md
 * @stateFlow 检查结果集合 -> 按类别聚合 -> 加权归一 -> [0,1]健康分
 * @rules 权重固定；缺失类别按存在类别权重归一；空结果集健康分为1.0；结果与输入顺序无关
 * @dependencies math
 * @refs service/checks, service/models/check_models.go
 */

package scoring

import (
	"math"

	"datasentinel-service/service/models"
)

// Weights 各检查类别的健康分权重
type Weights struct {
	NullRate        float64
	TypeConsistency float64
	Uniqueness      float64
	Outliers        float64
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		NullRate:        0.30,
		TypeConsistency: 0.20,
		Uniqueness:      0.20,
		Outliers:        0.30,
	}
}

func (w Weights) forType(checkType string) float64 {
	switch checkType {
	case models.IssueTypeNullRate:
		return w.NullRate
	case models.IssueTypeTypeConsistency:
		return w.TypeConsistency
	case models.IssueTypeUniqueness:
		return w.Uniqueness
	case models.IssueTypeOutliers:
		return w.Outliers
	default:
		return 0
	}
}

// Engine 健康分引擎
type Engine struct {
	weights Weights
}

// NewEngine 创建健康分引擎
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// CheckScore 单项检查得分：通过为1.0，失败按严重度线性衰减
func CheckScore(result models.CheckResult) float64 {
	if result.Passed {
		return 1.0
	}
	score := 1.0 - float64(result.Severity-1)*0.2
	return math.Max(0, score)
}

// HealthScore 计算健康分：各类别内取平均，再按存在类别的权重加权归一
// 空结果集返回1.0；结果裁剪到[0,1]
func (e *Engine) HealthScore(results []models.CheckResult) float64 {
	if len(results) == 0 {
		return 1.0
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, result := range results {
		sums[result.CheckType] += CheckScore(result)
		counts[result.CheckType]++
	}

	var weightedSum, weightTotal float64
	for checkType, sum := range sums {
		weight := e.weights.forType(checkType)
		if weight == 0 {
			continue
		}
		average := sum / float64(counts[checkType])
		weightedSum += weight * average
		weightTotal += weight
	}

	if weightTotal == 0 {
		return 1.0
	}

	score := weightedSum / weightTotal
	return math.Min(1.0, math.Max(0, score))
}

// Band 健康分等级，用于展示与告警分层
func Band(score float64) string {
	switch {
	case score >= 0.9:
		return "excellent"
	case score >= 0.7:
		return "good"
	case score >= 0.5:
		return "poor"
	default:
		return "critical"
	}
}
