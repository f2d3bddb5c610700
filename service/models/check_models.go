/*
 * @module service/models/check_models
 * @description 数据质量检查的值类型定义：表快照、列快照、检查结果
 * @architecture 数据模型层 - 流水线值对象
 * @documentReference dev_docs/model.md
 * @stateFlow 快照采样 -> 检查执行 -> 结果聚合
 * @rules 值对象不落库，仅在流水线内部传递；CheckResult.Extra保存量化上下文
 * @dependencies time
 * @refs service/checks, service/scoring
 */

package models

import "time"

// NumericStats 数值列统计量
type NumericStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// ColumnSnapshot 列快照，承载单列的采样统计
type ColumnSnapshot struct {
	Name          string `json:"name"`
	NullCount     int    `json:"null_count"`
	DistinctCount int    `json:"distinct_count"`
	IsNumeric     bool   `json:"is_numeric"`
	IsObject      bool   `json:"is_object"`
	// 采样中出现的运行时类型名集合（object列类型一致性检查使用）
	TypeSamples []string `json:"type_samples,omitempty"`
	// 非空数值采样值（数值列离群检查使用）
	Values []float64 `json:"values,omitempty"`
}

// TableSnapshot 表快照，一次采样的全部列统计
type TableSnapshot struct {
	TableName string           `json:"table_name"`
	RowCount  int              `json:"row_count"`
	Columns   []ColumnSnapshot `json:"columns"`
	SampledAt time.Time        `json:"sampled_at"`
}

// CheckResult 单项检查结果
type CheckResult struct {
	CheckType  string `json:"check_type"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	Passed     bool   `json:"passed"`
	// 严重度1-5，检查本身只产出1-3
	Severity  int     `json:"severity"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Extra     JSONB   `json:"extra,omitempty"`
}
