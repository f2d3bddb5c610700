/*
 * @module service/action/autofix
 * @description 自动修复记录器，登记修复意图与建议SQL但不在生产数据上执行
 * @architecture 服务层 - 协作者实现
 * @documentReference dev_docs/requirements.md
 * @stateFlow 校验建议SQL存在 -> 记录修复意图 -> 返回结果
 * @rules 建议SQL只登记不执行；无可用建议SQL视为修复失败
 * @dependencies log/slog
 * @refs service/action/router.go
 */

package action

import (
	"context"
	"fmt"
	"log/slog"

	"datasentinel-service/service/models"
)

// AutoFixRecorder 自动修复记录器，登记而不执行建议SQL
type AutoFixRecorder struct{}

// NewAutoFixRecorder 创建自动修复记录器
func NewAutoFixRecorder() *AutoFixRecorder {
	return &AutoFixRecorder{}
}

// Fix 登记修复意图；异常缺少建议SQL时返回错误
func (f *AutoFixRecorder) Fix(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	sql := record.SuggestedSQL
	if record.LLMExplanation != nil {
		if s, ok := record.LLMExplanation["suggested_sql"].(string); ok && s != "" {
			sql = s
		}
	}

	if sql == "" {
		return fmt.Errorf("异常无可用建议SQL，无法登记自动修复")
	}

	slog.Info("登记自动修复意图（SQL不执行）",
		"dataset_id", dataset.ID,
		"anomaly_id", record.ID,
		"issue_type", record.IssueType,
		"suggested_sql", sql)

	return nil
}
