/*
 * @module service/action/router
 * @description 动作路由器，按策略对异常执行自动修复、通知或工单审批流转
 * @architecture 服务层 - 状态机与协作者编排
 * @documentReference dev_docs/requirements.md
 * @stateFlow auto_fix: open->resolved(成功)/open(失败留痕); notify: open->resolved; create_issue: open->pending_approval->resolved(批准)/rejected(驳回)
 * @rules 通知为即发即弃；工单连接器仅在人工批准后调用且至多一次；重复审批已决议异常为幂等空操作；未进入审批流的异常不可审批
 * @dependencies gorm.io/gorm, log/slog
 * @refs service/action/policy.go, service/notify, service/issuetracker
 */

package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"datasentinel-service/service/models"

	"gorm.io/gorm"
)

// ErrInvalidTransition 非法状态流转（如审批从未进入审批流的异常）
var ErrInvalidTransition = errors.New("异常状态不允许该操作")

// Notifier 负责人通知协作者
type Notifier interface {
	NotifyAnomaly(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error
}

// IssueTracker 工单系统协作者
type IssueTracker interface {
	CreateIssue(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) (string, error)
}

// Fixer 自动修复协作者
type Fixer interface {
	Fix(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error
}

// Router 动作路由器
type Router struct {
	db       *gorm.DB
	policy   Policy
	fixer    Fixer
	notifier Notifier
	tracker  IssueTracker
}

// NewRouter 创建动作路由器
func NewRouter(db *gorm.DB, policy Policy, fixer Fixer, notifier Notifier, tracker IssueTracker) *Router {
	return &Router{
		db:       db,
		policy:   policy,
		fixer:    fixer,
		notifier: notifier,
		tracker:  tracker,
	}
}

// Route 对open状态异常执行策略决定的动作
func (r *Router) Route(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	if record.Status != models.AnomalyStatusOpen {
		return nil
	}

	policy := r.policy.WithOverrides(dataset.PolicyConfig)
	actionType := policy.Decide(record.Severity)

	slog.Info("异常动作路由",
		"anomaly_id", record.ID,
		"severity", record.Severity,
		"action_type", actionType)

	switch actionType {
	case models.ActionTypeAutoFix:
		return r.routeAutoFix(ctx, dataset, record)
	case models.ActionTypeNotifyOwner:
		return r.routeNotify(ctx, dataset, record)
	case models.ActionTypeCreateIssue:
		return r.routeCreateIssue(record)
	case models.ActionTypeNoAction:
		// 异常保持原状，不发生状态流转
		return nil
	default:
		return fmt.Errorf("未知动作类型: %s", actionType)
	}
}

// routeAutoFix 自动修复：成功则关闭异常，失败留痕并保持open
func (r *Router) routeAutoFix(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	now := time.Now()

	if err := r.fixer.Fix(ctx, dataset, record); err != nil {
		slog.Warn("自动修复失败，异常保持open状态",
			"anomaly_id", record.ID, "error", err)
		record.ActionTaken = models.JSONB{
			"action":   models.ActionTypeAutoFix,
			"result":   "failed",
			"error":    err.Error(),
			"taken_at": now.Format(time.RFC3339),
		}
		return r.save(record)
	}

	record.Status = models.AnomalyStatusResolved
	record.ResolvedAt = &now
	record.ActionTaken = models.JSONB{
		"action":   models.ActionTypeAutoFix,
		"result":   "success",
		"taken_at": now.Format(time.RFC3339),
	}
	return r.save(record)
}

// routeNotify 通知负责人：即发即弃，发送失败仅记录日志
func (r *Router) routeNotify(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	now := time.Now()

	if err := r.notifier.NotifyAnomaly(ctx, dataset, record); err != nil {
		slog.Warn("负责人通知发送失败",
			"anomaly_id", record.ID, "owner", dataset.Owner, "error", err)
	}

	record.Status = models.AnomalyStatusResolved
	record.ResolvedAt = &now
	record.ActionTaken = models.JSONB{
		"action":   models.ActionTypeNotifyOwner,
		"owner":    dataset.Owner,
		"taken_at": now.Format(time.RFC3339),
	}
	return r.save(record)
}

// routeCreateIssue 高严重度异常进入人工审批，工单此时不创建
func (r *Router) routeCreateIssue(record *models.Anomaly) error {
	record.Status = models.AnomalyStatusPendingApproval
	record.ActionTaken = models.JSONB{
		"action": models.ActionTypeCreateIssue,
		"result": "pending_approval",
	}
	return r.save(record)
}

// Approve 审批处理：批准则调用工单连接器并关闭，驳回则标记rejected
// 对已决议异常的重复审批为幂等空操作；open状态异常不可审批
func (r *Router) Approve(ctx context.Context, anomalyID string, approved bool, approvedBy string) (*models.Anomaly, error) {
	var record models.Anomaly
	if err := r.db.First(&record, "id = ?", anomalyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("异常不存在: %s", anomalyID)
		}
		return nil, fmt.Errorf("查询异常失败: %w", err)
	}

	switch record.Status {
	case models.AnomalyStatusPendingApproval:
		// 继续执行决议
	case models.AnomalyStatusResolved, models.AnomalyStatusRejected:
		if record.ActionTaken != nil && record.ActionTaken["decision"] != nil {
			slog.Info("异常已决议，重复审批为空操作", "anomaly_id", anomalyID)
			return &record, nil
		}
		return nil, fmt.Errorf("%w: 状态=%s", ErrInvalidTransition, record.Status)
	default:
		return nil, fmt.Errorf("%w: 状态=%s", ErrInvalidTransition, record.Status)
	}

	now := time.Now()
	var dataset models.Dataset
	if err := r.db.First(&dataset, "id = ?", record.DatasetID).Error; err != nil {
		return nil, fmt.Errorf("查询数据集失败: %w", err)
	}

	if !approved {
		record.Status = models.AnomalyStatusRejected
		record.ResolvedAt = &now
		record.ApprovedBy = approvedBy
		record.ActionTaken = models.JSONB{
			"action":     models.ActionTypeCreateIssue,
			"decision":   "rejected",
			"decided_by": approvedBy,
			"decided_at": now.Format(time.RFC3339),
		}
		if err := r.save(&record); err != nil {
			return nil, err
		}
		return &record, nil
	}

	issueURL, err := r.tracker.CreateIssue(ctx, &dataset, &record)
	if err != nil {
		// 工单创建失败保持pending_approval，允许重试
		return nil, fmt.Errorf("创建工单失败: %w", err)
	}

	record.Status = models.AnomalyStatusResolved
	record.ResolvedAt = &now
	record.ApprovedBy = approvedBy
	record.ActionTaken = models.JSONB{
		"action":     models.ActionTypeCreateIssue,
		"decision":   "approved",
		"decided_by": approvedBy,
		"decided_at": now.Format(time.RFC3339),
		"issue_url":  issueURL,
	}
	if err := r.save(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Router) save(record *models.Anomaly) error {
	if err := r.db.Save(record).Error; err != nil {
		return fmt.Errorf("保存异常状态失败: %w", err)
	}
	return nil
}
