/*
 * @module service/snapshot/provider
 * @description 数据快照提供器，从数据源采样并产出表快照统计
 * @architecture 服务层 - 数据访问抽象
 * @documentReference dev_docs/requirements.md
 * @stateFlow 表名校验 -> LIMIT采样 -> 逐列统计 -> 表快照
 * @rules 采样只读；表名必须通过标识符校验；零行表返回空快照而非错误
 * @dependencies gorm.io/gorm, database/sql
 * @refs service/models/check_models.go, service/runner/orchestrator.go
 */

package snapshot

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"datasentinel-service/service/models"

	"gorm.io/gorm"
)

// DefaultSampleSize 默认采样行数
const DefaultSampleSize = 100

// Provider 快照提供器接口
type Provider interface {
	Fetch(ctx context.Context, tableName string) (*models.TableSnapshot, error)
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLProvider 基于SQL采样的快照提供器
type SQLProvider struct {
	db         *gorm.DB
	sampleSize int
}

// NewSQLProvider 创建SQL快照提供器
func NewSQLProvider(db *gorm.DB, sampleSize int) *SQLProvider {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &SQLProvider{db: db, sampleSize: sampleSize}
}

// columnAccumulator 单列统计累加器
type columnAccumulator struct {
	name      string
	nullCount int
	distinct  map[string]struct{}
	types     map[string]struct{}
	values    []float64
	// 非空值总数中可转数值的个数，用于判定数值列
	numericCount int
	nonNullCount int
}

// Fetch 采样指定表并计算列统计
func (p *SQLProvider) Fetch(ctx context.Context, tableName string) (*models.TableSnapshot, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("非法表名: %s", tableName)
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableName, p.sampleSize)
	rows, err := p.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("采样表 %s 失败: %w", tableName, err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("读取列信息失败: %w", err)
	}

	accumulators := make([]*columnAccumulator, len(columnNames))
	for i, name := range columnNames {
		accumulators[i] = &columnAccumulator{
			name:     name,
			distinct: make(map[string]struct{}),
			types:    make(map[string]struct{}),
		}
	}

	rowCount := 0
	scanTargets := make([]interface{}, len(columnNames))
	for i := range scanTargets {
		scanTargets[i] = new(interface{})
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("扫描采样行失败: %w", err)
		}
		rowCount++

		for i, target := range scanTargets {
			value := *(target.(*interface{}))
			accumulators[i].observe(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历采样行失败: %w", err)
	}

	snapshot := &models.TableSnapshot{
		TableName: tableName,
		RowCount:  rowCount,
		Columns:   make([]models.ColumnSnapshot, 0, len(accumulators)),
		SampledAt: time.Now(),
	}
	for _, acc := range accumulators {
		snapshot.Columns = append(snapshot.Columns, acc.snapshot())
	}

	return snapshot, nil
}

// observe 累加单个采样值
func (a *columnAccumulator) observe(value interface{}) {
	if value == nil {
		a.nullCount++
		return
	}
	a.nonNullCount++

	switch v := value.(type) {
	case int64:
		a.types["int"] = struct{}{}
		a.numericCount++
		a.values = append(a.values, float64(v))
		a.distinct[fmt.Sprintf("i:%d", v)] = struct{}{}
	case float64:
		a.types["float"] = struct{}{}
		a.numericCount++
		a.values = append(a.values, v)
		a.distinct[fmt.Sprintf("f:%g", v)] = struct{}{}
	case bool:
		a.types["bool"] = struct{}{}
		a.distinct[fmt.Sprintf("b:%t", v)] = struct{}{}
	case time.Time:
		a.types["datetime"] = struct{}{}
		a.distinct["t:"+v.Format(time.RFC3339Nano)] = struct{}{}
	case []byte:
		a.types["str"] = struct{}{}
		a.distinct["s:"+string(v)] = struct{}{}
	case string:
		a.types["str"] = struct{}{}
		a.distinct["s:"+v] = struct{}{}
	default:
		a.types[fmt.Sprintf("%T", v)] = struct{}{}
		a.distinct[fmt.Sprintf("o:%v", v)] = struct{}{}
	}
}

// snapshot 产出列快照
func (a *columnAccumulator) snapshot() models.ColumnSnapshot {
	col := models.ColumnSnapshot{
		Name:          a.name,
		NullCount:     a.nullCount,
		DistinctCount: len(a.distinct),
	}

	// 全部非空值均为数值时视为数值列；出现字符串即按object列处理
	_, hasStr := a.types["str"]
	col.IsNumeric = a.nonNullCount > 0 && a.numericCount == a.nonNullCount
	col.IsObject = hasStr

	if col.IsObject {
		col.TypeSamples = make([]string, 0, len(a.types))
		for t := range a.types {
			col.TypeSamples = append(col.TypeSamples, t)
		}
		sort.Strings(col.TypeSamples)
	}

	if col.IsNumeric {
		col.Values = make([]float64, 0, len(a.values))
		for _, v := range a.values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				col.Values = append(col.Values, v)
			}
		}
	}

	return col
}
