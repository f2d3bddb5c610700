package explain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"datasentinel-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 测试用补全后端
type fakeBackend struct {
	response string
	err      error
	// blockUntilCancel为true时阻塞到context取消，用于超时测试
	blockUntilCancel bool
}

func (f *fakeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if f.blockUntilCancel {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

func testAnomaly() *models.Anomaly {
	return &models.Anomaly{
		ID:          "a-1",
		TableName:   "orders",
		ColumnName:  "amount",
		IssueType:   models.IssueTypeNullRate,
		Severity:    2,
		Description: "表 orders 列 amount 空值率 25.0% 超过阈值 10.0%",
		Extra:       models.JSONB{"null_count": 25, "row_count": 100},
	}
}

func TestExplainParsesStrictJSON(t *testing.T) {
	backend := &fakeBackend{
		response: `{"cause": "上游ETL写入阶段丢失amount字段", "confidence": 0.85, ` +
			`"suggested_sql": "SELECT * FROM staging.orders WHERE amount IS NULL LIMIT 50", ` +
			`"action_type": "notify_owner"}`,
	}
	explainer := NewExplainer(backend, time.Second)

	explanation := explainer.Explain(context.Background(), testAnomaly())

	assert.Equal(t, "上游ETL写入阶段丢失amount字段", explanation.Cause)
	assert.InDelta(t, 0.85, explanation.Confidence, 1e-9)
	require.NotNil(t, explanation.SuggestedSQL)
	assert.Contains(t, *explanation.SuggestedSQL, "staging.orders")
	assert.Equal(t, models.ActionTypeNotifyOwner, explanation.ActionType)
	assert.False(t, explanation.Degraded)
}

func TestExplainExtractsJSONFromProse(t *testing.T) {
	backend := &fakeBackend{
		response: "分析结果如下：\n```json\n" +
			`{"cause": "主键重复导入", "confidence": 0.6, "suggested_sql": null, "action_type": "create_issue"}` +
			"\n```\n希望对你有帮助。",
	}
	explainer := NewExplainer(backend, time.Second)

	explanation := explainer.Explain(context.Background(), testAnomaly())

	assert.Equal(t, "主键重复导入", explanation.Cause)
	assert.Equal(t, models.ActionTypeCreateIssue, explanation.ActionType)
	assert.Nil(t, explanation.SuggestedSQL)
	assert.False(t, explanation.Degraded)
}

func TestExplainFallbackOnError(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("连接被拒绝")}
	explainer := NewExplainer(backend, time.Second)

	explanation := explainer.Explain(context.Background(), testAnomaly())

	assert.Equal(t, "unknown", explanation.Cause)
	assert.InDelta(t, 0.0, explanation.Confidence, 1e-9)
	assert.Nil(t, explanation.SuggestedSQL)
	assert.Equal(t, models.ActionTypeNotifyOwner, explanation.ActionType)
	assert.True(t, explanation.Degraded)
}

func TestExplainFallbackOnTimeout(t *testing.T) {
	backend := &fakeBackend{blockUntilCancel: true}
	explainer := NewExplainer(backend, 50*time.Millisecond)

	started := time.Now()
	explanation := explainer.Explain(context.Background(), testAnomaly())

	assert.Less(t, time.Since(started), time.Second)
	assert.True(t, explanation.Degraded)
	assert.Equal(t, "unknown", explanation.Cause)
}

func TestExplainFallbackOnMalformedOutput(t *testing.T) {
	cases := []string{
		"这不是JSON",
		`{"cause": "缺少结尾`,
		`{"confidence": 0.5}`, // 缺少cause
		"",
	}

	for _, raw := range cases {
		backend := &fakeBackend{response: raw}
		explainer := NewExplainer(backend, time.Second)

		explanation := explainer.Explain(context.Background(), testAnomaly())
		assert.True(t, explanation.Degraded, "输出: %q", raw)
	}
}

func TestExplainNilBackendAlwaysDegrades(t *testing.T) {
	explainer := NewExplainer(nil, time.Second)

	explanation := explainer.Explain(context.Background(), testAnomaly())
	assert.True(t, explanation.Degraded)
}

func TestConfidenceClamp(t *testing.T) {
	t.Run("超过1裁剪到1", func(t *testing.T) {
		backend := &fakeBackend{response: `{"cause": "x", "confidence": 1.8, "action_type": "notify_owner"}`}
		explanation := NewExplainer(backend, time.Second).Explain(context.Background(), testAnomaly())
		assert.InDelta(t, 1.0, explanation.Confidence, 1e-9)
	})

	t.Run("负值裁剪到0", func(t *testing.T) {
		backend := &fakeBackend{response: `{"cause": "x", "confidence": -0.3, "action_type": "notify_owner"}`}
		explanation := NewExplainer(backend, time.Second).Explain(context.Background(), testAnomaly())
		assert.InDelta(t, 0.0, explanation.Confidence, 1e-9)
	})
}

func TestActionTypeNormalization(t *testing.T) {
	backend := &fakeBackend{response: `{"cause": "x", "confidence": 0.5, "action_type": "drop_table"}`}
	explanation := NewExplainer(backend, time.Second).Explain(context.Background(), testAnomaly())
	assert.Equal(t, models.ActionTypeNotifyOwner, explanation.ActionType)
}

func TestSuggestedSQLSafety(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		kept bool
	}{
		{"staging上的SELECT保留", "SELECT * FROM staging.orders LIMIT 10", true},
		{"staging上的UPDATE保留", "UPDATE staging.orders SET amount = 0 WHERE amount IS NULL", true},
		{"DELETE语句拒绝", "DELETE FROM staging.orders", false},
		{"DROP语句拒绝", "DROP TABLE staging.orders", false},
		{"非staging表拒绝", "SELECT * FROM production.orders", false},
		{"空字符串拒绝", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response := fmt.Sprintf(
				`{"cause": "x", "confidence": 0.5, "suggested_sql": %q, "action_type": "auto_fix"}`, tc.sql)
			backend := &fakeBackend{response: response}
			explanation := NewExplainer(backend, time.Second).Explain(context.Background(), testAnomaly())

			if tc.kept {
				require.NotNil(t, explanation.SuggestedSQL)
				assert.Equal(t, tc.sql, *explanation.SuggestedSQL)
			} else {
				assert.Nil(t, explanation.SuggestedSQL)
			}
		})
	}
}

func TestToJSONB(t *testing.T) {
	sql := "SELECT * FROM staging.orders"
	explanation := &Explanation{
		Cause: "x", Confidence: 0.5, SuggestedSQL: &sql,
		ActionType: models.ActionTypeAutoFix,
	}

	out := explanation.ToJSONB()
	assert.Equal(t, "x", out["cause"])
	assert.Equal(t, sql, out["suggested_sql"])
	assert.Nil(t, out["degraded"])

	degraded := fallbackExplanation().ToJSONB()
	assert.Equal(t, true, degraded["degraded"])
	assert.Nil(t, degraded["suggested_sql"])
}
