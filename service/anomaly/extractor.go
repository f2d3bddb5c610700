/*
 * @module service/anomaly/extractor
 * @description 异常提取器，将失败的检查结果沉淀为异常记录并对open状态异常去重
 * @architecture 服务层 - 持久化写入
 * @documentReference dev_docs/requirements.md
 * @stateFlow 检查结果过滤 -> 按去重键查询open异常 -> 更新已有 / 插入新记录
 * @rules 候选条件：未通过且严重度>=2；同键open异常至多一条，并发冲突回退为更新
 * @dependencies gorm.io/gorm, github.com/lib/pq
 * @refs service/anomaly/templates.go, service/models/anomaly.go
 */

package anomaly

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"datasentinel-service/service/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Extractor 异常提取器
type Extractor struct {
	db *gorm.DB
}

// NewExtractor 创建异常提取器
func NewExtractor(db *gorm.DB) *Extractor {
	return &Extractor{db: db}
}

// ExtractResult 提取结果，区分新建与去重更新的异常
type ExtractResult struct {
	Created []*models.Anomaly
	Updated []*models.Anomaly
}

// All 返回全部涉及的异常记录
func (r *ExtractResult) All() []*models.Anomaly {
	all := make([]*models.Anomaly, 0, len(r.Created)+len(r.Updated))
	all = append(all, r.Created...)
	all = append(all, r.Updated...)
	return all
}

// IsCandidate 判断检查结果是否构成异常候选
func IsCandidate(result models.CheckResult) bool {
	return !result.Passed && result.Severity >= 2
}

// Extract 从检查结果中提取异常并写入存储
func (e *Extractor) Extract(datasetID, runID string, results []models.CheckResult) (*ExtractResult, error) {
	extracted := &ExtractResult{}

	for _, result := range results {
		if !IsCandidate(result) {
			continue
		}

		record, created, err := e.upsert(datasetID, runID, result)
		if err != nil {
			return nil, fmt.Errorf("写入异常记录失败: %w", err)
		}

		if created {
			extracted.Created = append(extracted.Created, record)
		} else {
			extracted.Updated = append(extracted.Updated, record)
		}
	}

	return extracted, nil
}

// upsert 按去重键写入：存在open异常则更新，否则插入
// 并发插入触发唯一约束冲突时回退为更新
func (e *Extractor) upsert(datasetID, runID string, result models.CheckResult) (*models.Anomaly, bool, error) {
	now := time.Now()

	existing, err := e.findOpen(datasetID, result)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, e.refresh(existing, runID, result, now)
	}

	record := &models.Anomaly{
		DatasetID:    datasetID,
		RunID:        runID,
		TableName:    result.TableName,
		ColumnName:   result.ColumnName,
		IssueType:    result.CheckType,
		Severity:     result.Severity,
		Status:       models.AnomalyStatusOpen,
		Description:  BuildDescription(result),
		SuggestedSQL: BuildDiagnosticSQL(result),
		Extra:        result.Extra,
		DetectedAt:   now,
	}

	if err := e.db.Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			slog.Warn("异常插入唯一约束冲突，回退为更新",
				"dataset_id", datasetID,
				"table_name", result.TableName,
				"column_name", result.ColumnName,
				"issue_type", result.CheckType)

			existing, ferr := e.findOpen(datasetID, result)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing == nil {
				return nil, false, fmt.Errorf("唯一约束冲突后未找到open异常: %w", err)
			}
			return existing, false, e.refresh(existing, runID, result, now)
		}
		return nil, false, err
	}

	return record, true, nil
}

// findOpen 按去重键查询open状态异常
func (e *Extractor) findOpen(datasetID string, result models.CheckResult) (*models.Anomaly, error) {
	var record models.Anomaly
	err := e.db.Where(
		"dataset_id = ? AND table_name = ? AND column_name = ? AND issue_type = ? AND status = ?",
		datasetID, result.TableName, result.ColumnName, result.CheckType, models.AnomalyStatusOpen,
	).First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询open异常失败: %w", err)
	}
	return &record, nil
}

// refresh 去重更新：刷新量化上下文与检测时间，严重度只升不降
func (e *Extractor) refresh(record *models.Anomaly, runID string, result models.CheckResult, now time.Time) error {
	if result.Severity > record.Severity {
		record.Severity = result.Severity
	}
	record.RunID = runID
	record.Extra = result.Extra
	record.Description = BuildDescription(result)
	record.SuggestedSQL = BuildDiagnosticSQL(result)
	record.DetectedAt = now

	if err := e.db.Save(record).Error; err != nil {
		return fmt.Errorf("更新open异常失败: %w", err)
	}
	return nil
}

// isUniqueViolation 判断是否为唯一约束冲突（postgres 23505 或 gorm翻译后的错误）
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
