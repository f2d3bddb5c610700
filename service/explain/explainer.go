/*
 * @module service/explain/explainer
 * @description 异常解释适配器，调用LLM生成根因解释并做严格JSON解析与安全校验
 * @architecture 服务层 - 外部依赖适配与降级
 * @documentReference dev_docs/requirements.md
 * @stateFlow 构造提示词 -> 限时调用后端 -> 提取JSON -> 字段校验/裁剪 -> 解释或降级结果
 * @rules LLM失败、超时或输出不可解析时必须返回降级解释而非错误；建议SQL仅接受staging限定表上的SELECT/UPDATE
 * @dependencies context, encoding/json, log/slog
 * @refs service/explain/anthropic.go, service/models/anomaly.go
 */

package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"datasentinel-service/service/models"
)

// Backend LLM补全后端接口
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Explanation 解释结果
type Explanation struct {
	Cause        string  `json:"cause"`
	Confidence   float64 `json:"confidence"`
	SuggestedSQL *string `json:"suggested_sql"`
	ActionType   string  `json:"action_type"`
	// 降级标记：LLM不可用或输出不可解析时为true
	Degraded bool `json:"degraded,omitempty"`
}

// ToJSONB 转换为JSONB存储形式
func (e *Explanation) ToJSONB() models.JSONB {
	out := models.JSONB{
		"cause":       e.Cause,
		"confidence":  e.Confidence,
		"action_type": e.ActionType,
	}
	if e.SuggestedSQL != nil {
		out["suggested_sql"] = *e.SuggestedSQL
	} else {
		out["suggested_sql"] = nil
	}
	if e.Degraded {
		out["degraded"] = true
	}
	return out
}

// Explainer 异常解释适配器
type Explainer struct {
	backend Backend
	timeout time.Duration
}

// NewExplainer 创建解释适配器
func NewExplainer(backend Backend, timeout time.Duration) *Explainer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Explainer{backend: backend, timeout: timeout}
}

// fallbackExplanation 降级解释，LLM不可用时的确定性结果
func fallbackExplanation() *Explanation {
	return &Explanation{
		Cause:        "unknown",
		Confidence:   0.0,
		SuggestedSQL: nil,
		ActionType:   models.ActionTypeNotifyOwner,
		Degraded:     true,
	}
}

// Explain 为异常生成解释；任何失败路径均返回降级解释
func (e *Explainer) Explain(ctx context.Context, record *models.Anomaly) *Explanation {
	if e.backend == nil {
		return fallbackExplanation()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildPrompt(record)

	raw, err := e.backend.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("LLM解释调用失败，使用降级解释",
			"anomaly_id", record.ID,
			"issue_type", record.IssueType,
			"error", err)
		return fallbackExplanation()
	}

	explanation, err := parseExplanation(raw)
	if err != nil {
		slog.Warn("LLM输出解析失败，使用降级解释",
			"anomaly_id", record.ID,
			"error", err)
		return fallbackExplanation()
	}

	return explanation
}

// buildPrompt 构造提示词，要求严格JSON输出
func buildPrompt(record *models.Anomaly) string {
	extraJSON, _ := json.Marshal(record.Extra)

	var sb strings.Builder
	sb.WriteString("You are a data quality analyst. A data quality anomaly was detected.\n\n")
	sb.WriteString(fmt.Sprintf("Table: %s\nColumn: %s\nIssue type: %s\nSeverity: %d\n",
		record.TableName, record.ColumnName, record.IssueType, record.Severity))
	sb.WriteString(fmt.Sprintf("Description: %s\nMetrics: %s\n\n", record.Description, extraJSON))
	sb.WriteString("Respond with a single JSON object only, no prose, with exactly these keys:\n")
	sb.WriteString(`{"cause": "<likely root cause>", "confidence": <0.0-1.0>, ` +
		`"suggested_sql": "<SELECT or UPDATE statement on the staging-qualified table, or null>", ` +
		`"action_type": "<auto_fix|notify_owner|create_issue>"}`)
	return sb.String()
}

// parseExplanation 从LLM输出中提取并校验JSON对象
// 取首个'{'到末个'}'之间的片段解析，兼容输出前后的额外文本
func parseExplanation(raw string) (*Explanation, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("输出中未找到JSON对象")
	}

	var parsed struct {
		Cause        string  `json:"cause"`
		Confidence   float64 `json:"confidence"`
		SuggestedSQL *string `json:"suggested_sql"`
		ActionType   string  `json:"action_type"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("JSON解析失败: %w", err)
	}

	if parsed.Cause == "" {
		return nil, fmt.Errorf("缺少cause字段")
	}

	explanation := &Explanation{
		Cause:      parsed.Cause,
		Confidence: clampConfidence(parsed.Confidence),
		ActionType: normalizeActionType(parsed.ActionType),
	}

	if parsed.SuggestedSQL != nil && isSafeSuggestedSQL(*parsed.SuggestedSQL) {
		sql := strings.TrimSpace(*parsed.SuggestedSQL)
		explanation.SuggestedSQL = &sql
	}

	return explanation, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeActionType 非法动作类型回退为notify_owner
func normalizeActionType(actionType string) string {
	switch actionType {
	case models.ActionTypeAutoFix, models.ActionTypeNotifyOwner, models.ActionTypeCreateIssue:
		return actionType
	default:
		return models.ActionTypeNotifyOwner
	}
}

var stagingTablePattern = regexp.MustCompile(`(?i)\bstaging\.[A-Za-z_][A-Za-z0-9_]*\b`)

// isSafeSuggestedSQL 建议SQL安全校验：SELECT/UPDATE开头且引用staging限定表
func isSafeSuggestedSQL(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "UPDATE") {
		return false
	}

	return stagingTablePattern.MatchString(trimmed)
}
