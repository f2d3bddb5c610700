/*
 * @module service/models/run
 * @description 校验运行记录模型，保存每次数据质量流水线执行的状态与汇总结果
 * @architecture 数据模型层 - 领域实体定义
 * @documentReference dev_docs/model.md
 * @stateFlow running -> completed / failed
 * @rules 运行记录不可变更语义结果，Summary中保存健康分与各检查明细
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/models/dataset.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 运行状态常量
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run 校验运行记录
type Run struct {
	ID        string `json:"id" gorm:"type:varchar(36);primaryKey"`
	DatasetID string `json:"dataset_id" gorm:"type:varchar(36);not null;index"`
	Status    string `json:"status" gorm:"type:varchar(20);not null;default:'running'"`

	// 汇总结果：health_score、check_results、anomaly统计、错误信息
	Summary JSONB `json:"summary" gorm:"type:jsonb"`

	StartedAt   time.Time  `json:"started_at" gorm:"autoCreateTime"`
	FinishedAt  *time.Time `json:"finished_at"`
	TriggeredBy string     `json:"triggered_by" gorm:"type:varchar(100)"`

	Dataset *Dataset `json:"dataset,omitempty" gorm:"foreignKey:DatasetID"`
}

// BeforeCreate GORM钩子，自动生成UUID
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Run) TableName() string {
	return "runs"
}
