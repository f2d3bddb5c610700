/*
 * @module service/event/publisher
 * @description Kafka事件发布器，将运行完成与异常检出事件写入平台事件流
 * @architecture 适配器模式 - 封装Kafka生产者
 * @documentReference dev_docs/requirements.md
 * @stateFlow 事件构建 -> JSON序列化 -> 写入Kafka主题
 * @rules 事件发布即发即弃，失败仅记录日志不影响流水线；Broker未配置时发布为空操作
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/runner/orchestrator.go
 */

package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"datasentinel-service/service/models"

	"github.com/segmentio/kafka-go"
)

// 事件类型常量
const (
	EventTypeRunCompleted    = "run.completed"
	EventTypeRunFailed       = "run.failed"
	EventTypeAnomalyDetected = "anomaly.detected"
)

// Event 平台事件
type Event struct {
	Type      string       `json:"type"`
	DatasetID string       `json:"dataset_id"`
	RunID     string       `json:"run_id,omitempty"`
	AnomalyID string       `json:"anomaly_id,omitempty"`
	Payload   models.JSONB `json:"payload,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher Kafka事件发布器
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher 创建事件发布器；brokers为空时返回空操作发布器
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 || brokers[0] == "" {
		return &Publisher{topic: topic}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}

	return &Publisher{writer: writer, topic: topic}
}

// Publish 发布事件，失败仅记录日志
func (p *Publisher) Publish(ctx context.Context, event *Event) {
	if p.writer == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		slog.Warn("序列化事件失败", "event_type", event.Type, "error", err)
		return
	}

	message := kafka.Message{
		Key:   []byte(event.DatasetID),
		Value: value,
		Time:  event.Timestamp,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		slog.Warn("发布事件到Kafka失败",
			"event_type", event.Type,
			"dataset_id", event.DatasetID,
			"error", err)
	}
}

// PublishRunCompleted 发布运行完成事件
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *models.Run, healthScore float64) {
	p.Publish(ctx, &Event{
		Type:      EventTypeRunCompleted,
		DatasetID: run.DatasetID,
		RunID:     run.ID,
		Payload:   models.JSONB{"health_score": healthScore, "status": run.Status},
	})
}

// PublishRunFailed 发布运行失败事件
func (p *Publisher) PublishRunFailed(ctx context.Context, run *models.Run, reason string) {
	p.Publish(ctx, &Event{
		Type:      EventTypeRunFailed,
		DatasetID: run.DatasetID,
		RunID:     run.ID,
		Payload:   models.JSONB{"reason": reason},
	})
}

// PublishAnomalyDetected 发布异常检出事件
func (p *Publisher) PublishAnomalyDetected(ctx context.Context, record *models.Anomaly) {
	p.Publish(ctx, &Event{
		Type:      EventTypeAnomalyDetected,
		DatasetID: record.DatasetID,
		RunID:     record.RunID,
		AnomalyID: record.ID,
		Payload: models.JSONB{
			"issue_type":  record.IssueType,
			"severity":    record.Severity,
			"table_name":  record.TableName,
			"column_name": record.ColumnName,
		},
	})
}

// Close 关闭底层生产者
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
