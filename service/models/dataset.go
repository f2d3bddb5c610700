/*
 * @module service/models/dataset
 * @description 数据集模型，定义被监控数据集的元信息、健康分与调度配置
 * @architecture 数据模型层 - 领域实体定义
 * @documentReference dev_docs/model.md
 * @stateFlow 数据集注册 -> 定期校验 -> 健康分更新
 * @rules 数据集名称全局唯一；健康分范围[0,1]；策略配置为JSONB可选覆盖
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/models/run.go, service/models/anomaly.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dataset 数据集
type Dataset struct {
	ID          string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string `json:"description" gorm:"type:text"`
	Owner       string `json:"owner" gorm:"type:varchar(255)"`
	SourceTable string `json:"source_table" gorm:"type:varchar(255);not null"`

	// 最近一次校验得到的健康分，范围[0,1]
	HealthScore float64    `json:"health_score" gorm:"type:decimal(5,4);default:1.0"`
	LastIngest  *time.Time `json:"last_ingest"`

	// 调度配置：cron表达式为空表示仅手动触发
	CronExpression    string `json:"cron_expression" gorm:"type:varchar(100)"`
	IsScheduleEnabled bool   `json:"is_schedule_enabled" gorm:"default:false"`

	// 动作策略覆盖，识别键：auto_fix_max_severity / notify_severity / issue_severity_min
	PolicyConfig JSONB `json:"policy_config" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(100)"`
	UpdatedBy string    `json:"updated_by" gorm:"type:varchar(100)"`
}

// BeforeCreate GORM钩子，自动生成UUID
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}
