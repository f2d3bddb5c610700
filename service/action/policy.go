/*
 * @module service/action/policy
 * @description 动作路由策略，按异常严重度决定自动修复/通知负责人/创建工单
 * @architecture 服务层 - 纯决策逻辑
 * @documentReference dev_docs/requirements.md
 * @stateFlow 全局默认策略 -> 数据集JSONB覆盖 -> 严重度分段决策
 * @rules 严重度1-2自动修复，3通知负责人，4-5创建工单待审批；覆盖产生的区间空隙不执行动作；覆盖键非法时保留默认值
 * @dependencies github.com/spf13/cast
 * @refs service/action/router.go, service/models/dataset.go
 */

package action

import (
	"datasentinel-service/service/models"

	"github.com/spf13/cast"
)

// Policy 动作路由策略
type Policy struct {
	// 小于等于该严重度走自动修复
	AutoFixMaxSeverity int
	// 大于等于该严重度且未达工单线时通知负责人
	NotifySeverity int
	// 大于等于该严重度创建工单并进入审批
	IssueSeverityMin int
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		AutoFixMaxSeverity: 2,
		NotifySeverity:     3,
		IssueSeverityMin:   4,
	}
}

// WithOverrides 应用数据集级JSONB覆盖，未识别或非法的键保持默认
func (p Policy) WithOverrides(config models.JSONB) Policy {
	if config == nil {
		return p
	}

	if v, ok := config["auto_fix_max_severity"]; ok {
		if n, err := cast.ToIntE(v); err == nil && n >= 0 && n <= 5 {
			p.AutoFixMaxSeverity = n
		}
	}
	if v, ok := config["notify_severity"]; ok {
		if n, err := cast.ToIntE(v); err == nil && n >= 1 && n <= 5 {
			p.NotifySeverity = n
		}
	}
	if v, ok := config["issue_severity_min"]; ok {
		if n, err := cast.ToIntE(v); err == nil && n >= 1 && n <= 6 {
			p.IssueSeverityMin = n
		}
	}

	return p
}

// Decide 根据严重度决定动作类型
// 自动修复上限与通知下限之间的空隙（覆盖配置可产生）不执行任何动作
func (p Policy) Decide(severity int) string {
	switch {
	case severity <= p.AutoFixMaxSeverity:
		return models.ActionTypeAutoFix
	case severity >= p.IssueSeverityMin:
		return models.ActionTypeCreateIssue
	case severity >= p.NotifySeverity:
		return models.ActionTypeNotifyOwner
	default:
		return models.ActionTypeNoAction
	}
}
