/*
 * @module service/notify/notify
 * @description 通知渠道接口和多渠道广播器，向数据集负责人发送异常通知
 * @architecture 分层架构 - 协作者层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 通知构建 -> 各渠道发送 -> 失败记录日志
 * @rules 通知即发即弃，单渠道失败不阻断其余渠道；禁用渠道直接跳过
 * @dependencies log/slog
 * @refs service/notify/webhook.go, service/notify/email.go, service/notify/mqtt.go
 */

package notify

import (
	"context"
	"log/slog"
	"time"

	"datasentinel-service/service/models"
)

// Notification 通知内容
type Notification struct {
	DatasetID   string    `json:"dataset_id"`
	DatasetName string    `json:"dataset_name"`
	Owner       string    `json:"owner"`
	AnomalyID   string    `json:"anomaly_id"`
	TableName   string    `json:"table_name"`
	ColumnName  string    `json:"column_name"`
	IssueType   string    `json:"issue_type"`
	Severity    int       `json:"severity"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Sender 通知渠道接口
type Sender interface {
	Send(ctx context.Context, notification *Notification) error
	GetChannelType() string
	IsEnabled() bool
}

// Fanout 多渠道广播器
type Fanout struct {
	senders []Sender
}

// NewFanout 创建多渠道广播器
func NewFanout(senders ...Sender) *Fanout {
	return &Fanout{senders: senders}
}

// NotifyAnomaly 将异常广播到全部启用渠道，单渠道失败仅记录日志
func (f *Fanout) NotifyAnomaly(ctx context.Context, dataset *models.Dataset, record *models.Anomaly) error {
	notification := &Notification{
		DatasetID:   dataset.ID,
		DatasetName: dataset.Name,
		Owner:       dataset.Owner,
		AnomalyID:   record.ID,
		TableName:   record.TableName,
		ColumnName:  record.ColumnName,
		IssueType:   record.IssueType,
		Severity:    record.Severity,
		Description: record.Description,
		DetectedAt:  record.DetectedAt,
	}

	for _, sender := range f.senders {
		if !sender.IsEnabled() {
			continue
		}
		if err := sender.Send(ctx, notification); err != nil {
			slog.Warn("通知渠道发送失败",
				"channel", sender.GetChannelType(),
				"anomaly_id", record.ID,
				"error", err)
		}
	}

	return nil
}
