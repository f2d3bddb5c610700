package checks

import (
	"testing"

	"datasentinel-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(rowCount int, cols ...models.ColumnSnapshot) *models.TableSnapshot {
	return &models.TableSnapshot{
		TableName: "orders",
		RowCount:  rowCount,
		Columns:   cols,
	}
}

func findResult(t *testing.T, results []models.CheckResult, checkType, column string) models.CheckResult {
	t.Helper()
	for _, r := range results {
		if r.CheckType == checkType && r.ColumnName == column {
			return r
		}
	}
	t.Fatalf("未找到检查结果: %s/%s", checkType, column)
	return models.CheckResult{}
}

func TestCheckNullRate(t *testing.T) {
	library := NewLibrary(DefaultThresholds())

	t.Run("低空值率通过", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "amount", NullCount: 5, DistinctCount: 95})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeNullRate, "amount")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
		assert.InDelta(t, 0.05, result.Value, 1e-9)
		assert.InDelta(t, 0.10, result.Threshold, 1e-9)
	})

	t.Run("超阈值未超半数为中等严重度", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "amount", NullCount: 25, DistinctCount: 75})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeNullRate, "amount")
		assert.False(t, result.Passed)
		assert.Equal(t, 2, result.Severity)
		assert.InDelta(t, 0.25, result.Value, 1e-9)
	})

	t.Run("超过半数空值为高严重度", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "amount", NullCount: 60, DistinctCount: 40})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeNullRate, "amount")
		assert.False(t, result.Passed)
		assert.Equal(t, 3, result.Severity)
	})

	t.Run("恰好等于阈值视为通过", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "amount", NullCount: 10, DistinctCount: 90})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeNullRate, "amount")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
	})
}

func TestCheckTypeConsistency(t *testing.T) {
	library := NewLibrary(DefaultThresholds())

	t.Run("多种运行时类型判失败", func(t *testing.T) {
		snapshot := snapshotWith(50, models.ColumnSnapshot{
			Name: "tags", DistinctCount: 40, IsObject: true,
			TypeSamples: []string{"int", "str"},
		})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeTypeConsistency, "tags")
		assert.False(t, result.Passed)
		assert.Equal(t, 2, result.Severity)
		assert.InDelta(t, 2.0, result.Value, 1e-9)
		assert.InDelta(t, 1.0, result.Threshold, 1e-9)
	})

	t.Run("单一类型不产出结果", func(t *testing.T) {
		snapshot := snapshotWith(50, models.ColumnSnapshot{
			Name: "tags", DistinctCount: 40, IsObject: true,
			TypeSamples: []string{"str"},
		})
		results := library.RunAll(snapshot)

		for _, result := range results {
			assert.NotEqual(t, CheckTypeTypeConsistency, result.CheckType)
		}
	})

	t.Run("非object列跳过类型检查", func(t *testing.T) {
		snapshot := snapshotWith(50, models.ColumnSnapshot{
			Name: "amount", DistinctCount: 40, IsNumeric: true,
			Values: []float64{1, 2, 3},
		})
		results := library.RunAll(snapshot)

		for _, result := range results {
			assert.NotEqual(t, CheckTypeTypeConsistency, result.CheckType)
		}
	})
}

func TestCheckUniqueness(t *testing.T) {
	library := NewLibrary(DefaultThresholds())

	t.Run("高唯一率通过", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "order_id", DistinctCount: 96})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeUniqueness, "order_id")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
		assert.InDelta(t, 0.96, result.Value, 1e-9)
	})

	t.Run("极低唯一率为高严重度", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "status", DistinctCount: 5})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeUniqueness, "status")
		assert.False(t, result.Passed)
		assert.Equal(t, 3, result.Severity)
	})

	t.Run("中等唯一率为中等严重度", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "category", DistinctCount: 30})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeUniqueness, "category")
		assert.False(t, result.Passed)
		assert.Equal(t, 2, result.Severity)
	})

	t.Run("未达通过线但唯一率不低时严重度为1", func(t *testing.T) {
		// 通过判定与严重度分级是两条独立阈值带
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "sku", DistinctCount: 80})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeUniqueness, "sku")
		assert.False(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
	})

	t.Run("全空列视为空泛通过", func(t *testing.T) {
		snapshot := snapshotWith(100, models.ColumnSnapshot{Name: "deleted_at", NullCount: 100})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeUniqueness, "deleted_at")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
		assert.Equal(t, true, result.Extra["all_null"])
	})
}

func TestCheckOutliers(t *testing.T) {
	library := NewLibrary(DefaultThresholds())

	t.Run("离群值超阈值判失败", func(t *testing.T) {
		values := make([]float64, 0, 15)
		for i := 0; i < 14; i++ {
			values = append(values, 10)
		}
		values = append(values, 1000)

		snapshot := snapshotWith(15, models.ColumnSnapshot{
			Name: "amount", DistinctCount: 2, IsNumeric: true, Values: values,
		})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeOutliers, "amount")
		assert.False(t, result.Passed)
		assert.Equal(t, 2, result.Severity)
		assert.InDelta(t, 1.0/15.0, result.Value, 1e-9)
		assert.Equal(t, 1, result.Extra["outlier_count"])
	})

	t.Run("常量列视为空泛通过", func(t *testing.T) {
		snapshot := snapshotWith(10, models.ColumnSnapshot{
			Name: "flag", DistinctCount: 1, IsNumeric: true,
			Values: []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
		})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeOutliers, "flag")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
		assert.Equal(t, 0, result.Extra["outlier_count"])
	})

	t.Run("全空数值列视为空泛通过", func(t *testing.T) {
		snapshot := snapshotWith(10, models.ColumnSnapshot{
			Name: "score", NullCount: 10, IsNumeric: true,
		})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeOutliers, "score")
		assert.True(t, result.Passed)
		assert.Equal(t, 1, result.Severity)
		assert.Equal(t, true, result.Extra["all_null"])
	})

	t.Run("统计量写入Extra", func(t *testing.T) {
		snapshot := snapshotWith(4, models.ColumnSnapshot{
			Name: "amount", DistinctCount: 4, IsNumeric: true,
			Values: []float64{1, 2, 3, 4},
		})
		results := library.RunAll(snapshot)

		result := findResult(t, results, CheckTypeOutliers, "amount")
		require.NotNil(t, result.Extra)
		assert.InDelta(t, 1.0, result.Extra["min"].(float64), 1e-9)
		assert.InDelta(t, 4.0, result.Extra["max"].(float64), 1e-9)
		assert.InDelta(t, 2.5, result.Extra["mean"].(float64), 1e-9)
	})
}

func TestRunAllEmptySnapshot(t *testing.T) {
	library := NewLibrary(DefaultThresholds())

	assert.Nil(t, library.RunAll(nil))
	assert.Nil(t, library.RunAll(snapshotWith(0, models.ColumnSnapshot{Name: "amount"})))
}
