package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"datasentinel-service/service/action"
	"datasentinel-service/service/anomaly"
	"datasentinel-service/service/checks"
	"datasentinel-service/service/event"
	"datasentinel-service/service/explain"
	"datasentinel-service/service/models"
	"datasentinel-service/service/scoring"
	"datasentinel-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 测试用快照提供器
type fakeProvider struct {
	snapshot *models.TableSnapshot
	err      error
}

func (f *fakeProvider) Fetch(ctx context.Context, tableName string) (*models.TableSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

// fakeNotifier 测试用通知协作者
type fakeNotifier struct{ calls int }

func (f *fakeNotifier) NotifyAnomaly(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	f.calls++
	return nil
}

// fakeTracker 测试用工单协作者
type fakeTracker struct{ calls int }

func (f *fakeTracker) CreateIssue(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) (string, error) {
	f.calls++
	return "https://github.com/acme/data-issues/issues/1", nil
}

type orchestratorFixture struct {
	tdb      *testutil.TestDB
	factory  *testutil.TestDataFactory
	provider *fakeProvider
	notifier *fakeNotifier
	tracker  *fakeTracker
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	provider := &fakeProvider{}
	notifier := &fakeNotifier{}
	tracker := &fakeTracker{}

	router := action.NewRouter(tdb.DB, action.DefaultPolicy(),
		action.NewAutoFixRecorder(), notifier, tracker)

	orch := NewOrchestrator(
		tdb.DB,
		provider,
		checks.NewLibrary(checks.DefaultThresholds()),
		scoring.NewEngine(scoring.DefaultWeights()),
		anomaly.NewExtractor(tdb.DB),
		explain.NewExplainer(nil, time.Second),
		router,
		event.NewPublisher(nil, "test"),
	)

	return &orchestratorFixture{
		tdb:      tdb,
		factory:  testutil.NewTestDataFactory(tdb.DB),
		provider: provider,
		notifier: notifier,
		tracker:  tracker,
		orch:     orch,
	}
}

func TestRunDatasetHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()

	// amount列空值率25%：失败、严重度2，应沉淀为异常并走自动修复
	f.provider.snapshot = &models.TableSnapshot{
		TableName: "orders",
		RowCount:  100,
		Columns: []models.ColumnSnapshot{
			{Name: "order_id", NullCount: 0, DistinctCount: 100},
			{Name: "amount", NullCount: 25, DistinctCount: 70},
		},
	}

	run, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, run.Summary["anomalies_created"].(int))

	healthScore := run.Summary["health_score"].(float64)
	assert.Greater(t, healthScore, 0.0)
	assert.Less(t, healthScore, 1.0)

	// 数据集健康分与最近校验时间已更新
	var saved models.Dataset
	require.NoError(t, f.tdb.DB.First(&saved, "id = ?", dataset.ID).Error)
	assert.InDelta(t, healthScore, saved.HealthScore, 1e-9)
	require.NotNil(t, saved.LastIngest)

	// 异常携带降级解释并被自动修复关闭
	var record models.Anomaly
	require.NoError(t, f.tdb.DB.First(&record, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.IssueTypeNullRate, record.IssueType)
	assert.Equal(t, models.AnomalyStatusResolved, record.Status)
	require.NotNil(t, record.LLMExplanation)
	assert.Equal(t, true, record.LLMExplanation["degraded"])
}

func TestRunDatasetFetchFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()
	f.provider.err = fmt.Errorf("连接源库失败")

	run, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Contains(t, run.Summary["error"], "快照采样失败")

	// 采样失败不产生异常
	var count int64
	f.tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRunDatasetZeroRowSnapshot(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()

	f.provider.snapshot = &models.TableSnapshot{
		TableName: "orders",
		RowCount:  0,
		Columns:   []models.ColumnSnapshot{{Name: "amount"}},
	}

	run, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)

	// 零行快照：运行完成、健康分0、无检查结果、无异常
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.InDelta(t, 0.0, run.Summary["health_score"].(float64), 1e-9)
	assert.Equal(t, 0, run.Summary["checks_total"].(int))

	var count int64
	f.tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(0), count)

	var saved models.Dataset
	require.NoError(t, f.tdb.DB.First(&saved, "id = ?", dataset.ID).Error)
	assert.InDelta(t, 0.0, saved.HealthScore, 1e-9)
}

func TestRunDatasetHealthySnapshotCreatesNoAnomalies(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()

	f.provider.snapshot = &models.TableSnapshot{
		TableName: "orders",
		RowCount:  100,
		Columns: []models.ColumnSnapshot{
			{Name: "order_id", NullCount: 0, DistinctCount: 100},
		},
	}

	run, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.InDelta(t, 1.0, run.Summary["health_score"].(float64), 1e-9)

	var count int64
	f.tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRunDatasetDedupAcrossRuns(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()

	// 列名不是合法标识符，诊断SQL不生成，自动修复失败后异常保持open
	f.provider.snapshot = &models.TableSnapshot{
		TableName: "orders",
		RowCount:  100,
		Columns: []models.ColumnSnapshot{
			{Name: "amount-usd", NullCount: 25, DistinctCount: 70},
		},
	}

	first, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary["anomalies_created"].(int))

	var record models.Anomaly
	require.NoError(t, f.tdb.DB.First(&record, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.AnomalyStatusOpen, record.Status)

	// 同一问题再次检出：去重更新而非新建
	second, err := f.orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary["anomalies_created"].(int))
	assert.Equal(t, 1, second.Summary["anomalies_updated"].(int))

	var count int64
	f.tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

// countingFixer 统计调用次数的自动修复协作者
type countingFixer struct {
	calls int
	err   error
}

func (f *countingFixer) Fix(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	f.calls++
	return f.err
}

func TestRunDatasetReroutesUpdatedAnomalies(t *testing.T) {
	f := newOrchestratorFixture(t)
	dataset := f.factory.CreateDataset()

	// 自动修复持续失败，异常保持open
	fixer := &countingFixer{err: fmt.Errorf("修复不可用")}
	router := action.NewRouter(f.tdb.DB, action.DefaultPolicy(), fixer, f.notifier, f.tracker)
	orch := NewOrchestrator(
		f.tdb.DB,
		f.provider,
		checks.NewLibrary(checks.DefaultThresholds()),
		scoring.NewEngine(scoring.DefaultWeights()),
		anomaly.NewExtractor(f.tdb.DB),
		explain.NewExplainer(nil, time.Second),
		router,
		event.NewPublisher(nil, "test"),
	)

	f.provider.snapshot = &models.TableSnapshot{
		TableName: "orders",
		RowCount:  100,
		Columns: []models.ColumnSnapshot{
			{Name: "amount", NullCount: 25, DistinctCount: 70},
		},
	}

	first, err := orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary["anomalies_created"].(int))
	assert.Equal(t, 1, fixer.calls)

	var record models.Anomaly
	require.NoError(t, f.tdb.DB.First(&record, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.AnomalyStatusOpen, record.Status)

	// 同一问题再次检出：去重更新的open异常也重新解释并路由
	second, err := orch.RunDataset(context.Background(), dataset.ID, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary["anomalies_updated"].(int))
	assert.Equal(t, 2, fixer.calls)

	require.NoError(t, f.tdb.DB.First(&record, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.AnomalyStatusOpen, record.Status)
	require.NotNil(t, record.LLMExplanation)
	assert.Equal(t, true, record.LLMExplanation["degraded"])

	var count int64
	f.tdb.DB.Model(&models.Anomaly{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRunDatasetUnknownDataset(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orch.RunDataset(context.Background(), "no-such-id", "test")
	assert.Error(t, err)
}
