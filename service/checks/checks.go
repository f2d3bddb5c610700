/*
 * @module service/checks/checks
 * @description 数据质量检查库，提供空值率、类型一致性、唯一性、离群值四类检查
 * @architecture 服务层 - 无状态检查引擎
 * @documentReference dev_docs/requirements.md
 * @stateFlow 表快照输入 -> 逐列执行检查 -> 输出检查结果集合
 * @rules 检查相互独立，单项panic被捕获降级为失败结果；阈值可注入，默认值固定
 * @dependencies log/slog, math
 * @refs service/models/check_models.go, service/scoring
 */

package checks

import (
	"fmt"
	"log/slog"
	"math"

	"datasentinel-service/service/models"
)

// 检查类型常量，与异常问题类型一一对应
const (
	CheckTypeNullRate        = models.IssueTypeNullRate
	CheckTypeTypeConsistency = models.IssueTypeTypeConsistency
	CheckTypeUniqueness      = models.IssueTypeUniqueness
	CheckTypeOutliers        = models.IssueTypeOutliers
)

// Thresholds 检查阈值配置
type Thresholds struct {
	NullRate    float64 // 空值率上限
	Uniqueness  float64 // 唯一率下限
	OutlierRate float64 // 离群比例上限
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		NullRate:    0.10,
		Uniqueness:  0.95,
		OutlierRate: 0.05,
	}
}

// Library 检查库
type Library struct {
	thresholds Thresholds
}

// NewLibrary 创建检查库实例
func NewLibrary(thresholds Thresholds) *Library {
	return &Library{thresholds: thresholds}
}

// RunAll 对表快照执行全部适用检查
// 空快照（零行）不产生任何检查结果
func (l *Library) RunAll(snapshot *models.TableSnapshot) []models.CheckResult {
	if snapshot == nil || snapshot.RowCount == 0 {
		return nil
	}

	results := make([]models.CheckResult, 0, len(snapshot.Columns)*2)
	for i := range snapshot.Columns {
		col := &snapshot.Columns[i]

		if result, ok := l.safeRun(snapshot, col, CheckTypeNullRate, l.checkNullRate); ok {
			results = append(results, result)
		}
		if col.IsObject {
			if result, ok := l.safeRun(snapshot, col, CheckTypeTypeConsistency, l.checkTypeConsistency); ok {
				results = append(results, result)
			}
		}
		if result, ok := l.safeRun(snapshot, col, CheckTypeUniqueness, l.checkUniqueness); ok {
			results = append(results, result)
		}
		if col.IsNumeric {
			if result, ok := l.safeRun(snapshot, col, CheckTypeOutliers, l.checkOutliers); ok {
				results = append(results, result)
			}
		}
	}

	return results
}

type checkFunc func(snapshot *models.TableSnapshot, col *models.ColumnSnapshot) (models.CheckResult, bool)

// safeRun 执行单项检查并隔离panic，单列失败不影响其余检查
func (l *Library) safeRun(snapshot *models.TableSnapshot, col *models.ColumnSnapshot, checkType string, fn checkFunc) (result models.CheckResult, emit bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("检查执行发生panic，降级为失败结果",
				"check_type", checkType,
				"table_name", snapshot.TableName,
				"column_name", col.Name,
				"panic", r)
			result = models.CheckResult{
				CheckType:  checkType,
				TableName:  snapshot.TableName,
				ColumnName: col.Name,
				Passed:     false,
				Severity:   1,
				Extra:      models.JSONB{"error": fmt.Sprintf("%v", r)},
			}
			emit = true
		}
	}()

	return fn(snapshot, col)
}

// checkNullRate 空值率检查：value = 空值数/行数
func (l *Library) checkNullRate(snapshot *models.TableSnapshot, col *models.ColumnSnapshot) (models.CheckResult, bool) {
	value := float64(col.NullCount) / float64(snapshot.RowCount)

	severity := 1
	if value > 0.5 {
		severity = 3
	} else if value > l.thresholds.NullRate {
		severity = 2
	}

	return models.CheckResult{
		CheckType:  CheckTypeNullRate,
		TableName:  snapshot.TableName,
		ColumnName: col.Name,
		Passed:     value <= l.thresholds.NullRate,
		Severity:   severity,
		Value:      value,
		Threshold:  l.thresholds.NullRate,
		Extra: models.JSONB{
			"null_count": col.NullCount,
			"row_count":  snapshot.RowCount,
		},
	}, true
}

// checkTypeConsistency 类型一致性检查：仅object列，采样中出现多种运行时类型即失败
// 仅在失败时产出结果
func (l *Library) checkTypeConsistency(snapshot *models.TableSnapshot, col *models.ColumnSnapshot) (models.CheckResult, bool) {
	distinctTypes := len(col.TypeSamples)
	if distinctTypes <= 1 {
		return models.CheckResult{}, false
	}

	return models.CheckResult{
		CheckType:  CheckTypeTypeConsistency,
		TableName:  snapshot.TableName,
		ColumnName: col.Name,
		Passed:     false,
		Severity:   2,
		Value:      float64(distinctTypes),
		Threshold:  1,
		Extra: models.JSONB{
			"types": col.TypeSamples,
		},
	}, true
}

// checkUniqueness 唯一性检查：value = 去重值数/行数
// 通过判定与严重度分级使用相互独立的阈值带
func (l *Library) checkUniqueness(snapshot *models.TableSnapshot, col *models.ColumnSnapshot) (models.CheckResult, bool) {
	// 全空列视为空泛通过
	if col.NullCount >= snapshot.RowCount {
		return models.CheckResult{
			CheckType:  CheckTypeUniqueness,
			TableName:  snapshot.TableName,
			ColumnName: col.Name,
			Passed:     true,
			Severity:   1,
			Value:      0,
			Threshold:  l.thresholds.Uniqueness,
			Extra:      models.JSONB{"all_null": true},
		}, true
	}

	value := float64(col.DistinctCount) / float64(snapshot.RowCount)

	severity := 1
	if value < 0.10 {
		severity = 3
	} else if value < 0.50 {
		severity = 2
	}

	return models.CheckResult{
		CheckType:  CheckTypeUniqueness,
		TableName:  snapshot.TableName,
		ColumnName: col.Name,
		Passed:     value >= l.thresholds.Uniqueness,
		Severity:   severity,
		Value:      value,
		Threshold:  l.thresholds.Uniqueness,
		Extra: models.JSONB{
			"distinct_count": col.DistinctCount,
			"row_count":      snapshot.RowCount,
		},
	}, true
}

// checkOutliers 离群值检查：3σ准则，value = 离群比例
func (l *Library) checkOutliers(snapshot *models.TableSnapshot, col *models.ColumnSnapshot) (models.CheckResult, bool) {
	vacuous := func(extra models.JSONB) (models.CheckResult, bool) {
		return models.CheckResult{
			CheckType:  CheckTypeOutliers,
			TableName:  snapshot.TableName,
			ColumnName: col.Name,
			Passed:     true,
			Severity:   1,
			Value:      0,
			Threshold:  l.thresholds.OutlierRate,
			Extra:      extra,
		}, true
	}

	if len(col.Values) == 0 {
		return vacuous(models.JSONB{"all_null": true})
	}

	stats := computeStats(col.Values)

	// 标准差为零（常量列）无法定义离群点，视为空泛通过
	if stats.Std == 0 {
		return vacuous(models.JSONB{
			"min": stats.Min, "max": stats.Max,
			"mean": stats.Mean, "std": stats.Std,
			"outlier_count": 0,
		})
	}

	outlierCount := 0
	for _, v := range col.Values {
		if math.Abs(v-stats.Mean) > 3*stats.Std {
			outlierCount++
		}
	}
	value := float64(outlierCount) / float64(len(col.Values))

	severity := 1
	if value > 0.20 {
		severity = 3
	} else if value > l.thresholds.OutlierRate {
		severity = 2
	}

	return models.CheckResult{
		CheckType:  CheckTypeOutliers,
		TableName:  snapshot.TableName,
		ColumnName: col.Name,
		Passed:     value <= l.thresholds.OutlierRate,
		Severity:   severity,
		Value:      value,
		Threshold:  l.thresholds.OutlierRate,
		Extra: models.JSONB{
			"min": stats.Min, "max": stats.Max,
			"mean": stats.Mean, "std": stats.Std,
			"outlier_count": outlierCount,
		},
	}, true
}

// computeStats 计算数值序列的基础统计量（总体标准差）
func computeStats(values []float64) models.NumericStats {
	stats := models.NumericStats{
		Min:   values[0],
		Max:   values[0],
		Count: len(values),
	}

	var sum float64
	for _, v := range values {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - stats.Mean
		variance += d * d
	}
	stats.Std = math.Sqrt(variance / float64(len(values)))

	return stats
}
