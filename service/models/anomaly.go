/*
 * @module service/models/anomaly
 * @description 异常记录模型，定义问题类型、动作类型与异常生命周期状态
 * @architecture 数据模型层 - 领域实体定义
 * @documentReference dev_docs/model.md
 * @stateFlow open -> (auto_fix成功) resolved; open -> pending_approval -> resolved / rejected -> resolved
 * @rules 同一(dataset_id, table_name, column_name, issue_type)至多存在一条open状态异常，由部分唯一索引保障
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/models/dataset.go, service/anomaly/extractor.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 问题类型常量（封闭集合）
const (
	IssueTypeNullRate        = "null_rate"
	IssueTypeTypeConsistency = "type_consistency"
	IssueTypeUniqueness      = "uniqueness"
	IssueTypeOutliers        = "outliers"
)

// 异常状态常量
const (
	AnomalyStatusOpen            = "open"
	AnomalyStatusPendingApproval = "pending_approval"
	AnomalyStatusResolved        = "resolved"
	AnomalyStatusRejected        = "rejected"
)

// 动作类型常量
const (
	ActionTypeAutoFix     = "auto_fix"
	ActionTypeNotifyOwner = "notify_owner"
	ActionTypeCreateIssue = "create_issue"
	// 不执行任何动作，异常保持原状
	ActionTypeNoAction = "no_action"
)

// Anomaly 异常记录
type Anomaly struct {
	ID        string `json:"id" gorm:"type:varchar(36);primaryKey"`
	DatasetID string `json:"dataset_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_anomaly_open_key,where:status = 'open'"`
	RunID     string `json:"run_id" gorm:"type:varchar(36);index"`

	TableName  string `json:"table_name" gorm:"column:table_name;type:varchar(255);not null;uniqueIndex:idx_anomaly_open_key,where:status = 'open'"`
	ColumnName string `json:"column_name" gorm:"type:varchar(255);not null;uniqueIndex:idx_anomaly_open_key,where:status = 'open'"`
	IssueType  string `json:"issue_type" gorm:"type:varchar(50);not null;uniqueIndex:idx_anomaly_open_key,where:status = 'open'"`

	Severity    int    `json:"severity" gorm:"not null;default:1"`
	Status      string `json:"status" gorm:"type:varchar(30);not null;default:'open';index"`
	Description string `json:"description" gorm:"type:text"`

	// 模板生成的只读诊断SQL
	SuggestedSQL string `json:"suggested_sql" gorm:"type:text"`

	// LLM解释结果：cause / confidence / suggested_sql / action_type / degraded
	LLMExplanation JSONB `json:"llm_explanation" gorm:"type:jsonb"`

	// 检查产出的量化上下文（value、threshold、统计量等）
	Extra JSONB `json:"extra" gorm:"type:jsonb"`

	// 已执行的路由动作与结果
	ActionTaken JSONB `json:"action_taken" gorm:"type:jsonb"`

	DetectedAt time.Time  `json:"detected_at" gorm:"not null"`
	ResolvedAt *time.Time `json:"resolved_at"`
	ApprovedBy string     `json:"approved_by" gorm:"type:varchar(100)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Dataset *Dataset `json:"dataset,omitempty" gorm:"foreignKey:DatasetID"`
}

// BeforeCreate GORM钩子，自动生成UUID
func (a *Anomaly) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// AnomalyKey 异常去重键
type AnomalyKey struct {
	DatasetID  string
	TableName  string
	ColumnName string
	IssueType  string
}

// Key 返回当前异常的去重键
func (a *Anomaly) Key() AnomalyKey {
	return AnomalyKey{
		DatasetID:  a.DatasetID,
		TableName:  a.TableName,
		ColumnName: a.ColumnName,
		IssueType:  a.IssueType,
	}
}
