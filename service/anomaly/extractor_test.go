package anomaly

import (
	"testing"

	"datasentinel-service/service/models"
	"datasentinel-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedCheck(severity int) models.CheckResult {
	return models.CheckResult{
		CheckType:  models.IssueTypeNullRate,
		TableName:  "orders",
		ColumnName: "amount",
		Passed:     false,
		Severity:   severity,
		Value:      0.25,
		Threshold:  0.10,
		Extra:      models.JSONB{"null_count": 25, "row_count": 100},
	}
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate(models.CheckResult{Passed: false, Severity: 2}))
	assert.True(t, IsCandidate(models.CheckResult{Passed: false, Severity: 3}))
	assert.False(t, IsCandidate(models.CheckResult{Passed: false, Severity: 1}))
	assert.False(t, IsCandidate(models.CheckResult{Passed: true, Severity: 3}))
}

func TestExtractCreatesAnomaly(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)
	dataset := factory.CreateDataset()

	extractor := NewExtractor(tdb.DB)

	result, err := extractor.Extract(dataset.ID, "run-1", []models.CheckResult{failedCheck(2)})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Empty(t, result.Updated)

	record := result.Created[0]
	assert.Equal(t, models.AnomalyStatusOpen, record.Status)
	assert.Equal(t, models.IssueTypeNullRate, record.IssueType)
	assert.Equal(t, 2, record.Severity)
	assert.NotEmpty(t, record.Description)
	assert.NotEmpty(t, record.SuggestedSQL)
	assert.False(t, record.DetectedAt.IsZero())

	// 记录落在anomalies表，table_name列承载去重键
	var count int64
	require.NoError(t, tdb.DB.Table("anomalies").Where("table_name = ?", "orders").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestExtractSkipsNonCandidates(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)
	dataset := factory.CreateDataset()

	extractor := NewExtractor(tdb.DB)

	results := []models.CheckResult{
		{CheckType: models.IssueTypeNullRate, TableName: "orders", ColumnName: "a", Passed: true, Severity: 1},
		{CheckType: models.IssueTypeUniqueness, TableName: "orders", ColumnName: "b", Passed: false, Severity: 1},
	}

	extracted, err := extractor.Extract(dataset.ID, "run-1", results)
	require.NoError(t, err)
	assert.Empty(t, extracted.Created)
	assert.Empty(t, extracted.Updated)

	var count int64
	tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestExtractDeduplicatesOpenAnomaly(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)
	dataset := factory.CreateDataset()

	extractor := NewExtractor(tdb.DB)

	first, err := extractor.Extract(dataset.ID, "run-1", []models.CheckResult{failedCheck(2)})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)
	firstDetectedAt := first.Created[0].DetectedAt

	// 同键再次检出：更新而非新建
	second, err := extractor.Extract(dataset.ID, "run-2", []models.CheckResult{failedCheck(2)})
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	require.Len(t, second.Updated, 1)
	assert.Equal(t, first.Created[0].ID, second.Updated[0].ID)
	assert.False(t, second.Updated[0].DetectedAt.Before(firstDetectedAt))
	assert.Equal(t, "run-2", second.Updated[0].RunID)

	var count int64
	tdb.DB.Model(&models.Anomaly{}).Where("status = ?", models.AnomalyStatusOpen).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestExtractSeverityOnlyEscalates(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)
	dataset := factory.CreateDataset()

	extractor := NewExtractor(tdb.DB)

	_, err := extractor.Extract(dataset.ID, "run-1", []models.CheckResult{failedCheck(3)})
	require.NoError(t, err)

	// 低严重度的再次检出不降级
	second, err := extractor.Extract(dataset.ID, "run-2", []models.CheckResult{failedCheck(2)})
	require.NoError(t, err)
	require.Len(t, second.Updated, 1)
	assert.Equal(t, 3, second.Updated[0].Severity)

	// 高严重度的再次检出升级
	third, err := extractor.Extract(dataset.ID, "run-3", []models.CheckResult{failedCheck(3)})
	require.NoError(t, err)
	require.Len(t, third.Updated, 1)
	assert.Equal(t, 3, third.Updated[0].Severity)
}

func TestExtractResolvedAnomalyDoesNotBlockNew(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	factory := testutil.NewTestDataFactory(tdb.DB)
	dataset := factory.CreateDataset()

	// 已关闭的同键异常不参与去重
	factory.CreateAnomaly(dataset.ID, func(a *models.Anomaly) {
		a.Status = models.AnomalyStatusResolved
	})

	extractor := NewExtractor(tdb.DB)

	extracted, err := extractor.Extract(dataset.ID, "run-1", []models.CheckResult{failedCheck(2)})
	require.NoError(t, err)
	assert.Len(t, extracted.Created, 1)
}

func TestBuildDescription(t *testing.T) {
	t.Run("各问题类型生成描述", func(t *testing.T) {
		for _, issueType := range []string{
			models.IssueTypeNullRate,
			models.IssueTypeTypeConsistency,
			models.IssueTypeUniqueness,
			models.IssueTypeOutliers,
		} {
			result := models.CheckResult{
				CheckType: issueType, TableName: "orders", ColumnName: "amount",
				Value: 0.25, Threshold: 0.10,
			}
			description := BuildDescription(result)
			assert.Contains(t, description, "orders")
			assert.Contains(t, description, "amount")
		}
	})
}

func TestBuildDiagnosticSQL(t *testing.T) {
	t.Run("诊断SQL为只读SELECT", func(t *testing.T) {
		for _, issueType := range []string{
			models.IssueTypeNullRate,
			models.IssueTypeTypeConsistency,
			models.IssueTypeUniqueness,
			models.IssueTypeOutliers,
		} {
			result := models.CheckResult{
				CheckType: issueType, TableName: "orders", ColumnName: "amount",
				Extra: models.JSONB{"mean": 10.0, "std": 2.0},
			}
			sql := BuildDiagnosticSQL(result)
			require.NotEmpty(t, sql, issueType)
			assert.True(t, len(sql) > 6 && sql[:6] == "SELECT", issueType)
		}
	})

	t.Run("非法标识符不生成SQL", func(t *testing.T) {
		result := models.CheckResult{
			CheckType: models.IssueTypeNullRate,
			TableName: "orders; DROP TABLE users", ColumnName: "amount",
		}
		assert.Empty(t, BuildDiagnosticSQL(result))

		result = models.CheckResult{
			CheckType: models.IssueTypeNullRate,
			TableName: "orders", ColumnName: "amount--",
		}
		assert.Empty(t, BuildDiagnosticSQL(result))
	})
}
