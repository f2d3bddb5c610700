/*
 * @module service/runner/orchestrator
 * @description 校验运行编排器，串联快照采样、检查、评分、异常提取、解释与动作路由
 * @architecture 服务层 - 流水线编排
 * @documentReference dev_docs/requirements.md
 * @stateFlow 创建运行记录 -> 采样 -> 检查 -> 评分 -> 更新数据集 -> 提取异常 -> 解释 -> 路由 -> 归档运行
 * @rules 采样失败运行记为failed且不产生异常；新建与去重更新的异常均重新解释与路由；解释失败降级不阻断；事件发布与指标更新即发即弃；零行快照健康分为0且无检查结果
 * @dependencies gorm.io/gorm, log/slog
 * @refs service/checks, service/scoring, service/anomaly, service/explain, service/action, service/event
 */

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datasentinel-service/service/action"
	"datasentinel-service/service/anomaly"
	"datasentinel-service/service/checks"
	"datasentinel-service/service/event"
	"datasentinel-service/service/explain"
	"datasentinel-service/service/models"
	"datasentinel-service/service/scoring"
	"datasentinel-service/service/snapshot"

	"gorm.io/gorm"
)

// Orchestrator 校验运行编排器
type Orchestrator struct {
	db        *gorm.DB
	provider  snapshot.Provider
	library   *checks.Library
	engine    *scoring.Engine
	extractor *anomaly.Extractor
	explainer *explain.Explainer
	router    *action.Router
	publisher *event.Publisher
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	db *gorm.DB,
	provider snapshot.Provider,
	library *checks.Library,
	engine *scoring.Engine,
	extractor *anomaly.Extractor,
	explainer *explain.Explainer,
	router *action.Router,
	publisher *event.Publisher,
) *Orchestrator {
	return &Orchestrator{
		db:        db,
		provider:  provider,
		library:   library,
		engine:    engine,
		extractor: extractor,
		explainer: explainer,
		router:    router,
		publisher: publisher,
	}
}

// RunDataset 对数据集执行一次完整校验流水线
// 采样或持久化失败时运行记录为failed并返回该记录，不向上抛错
func (o *Orchestrator) RunDataset(ctx context.Context, datasetID, triggeredBy string) (*models.Run, error) {
	started := time.Now()

	var dataset models.Dataset
	if err := o.db.First(&dataset, "id = ?", datasetID).Error; err != nil {
		return nil, fmt.Errorf("查询数据集失败: %w", err)
	}

	run := &models.Run{
		DatasetID:   dataset.ID,
		Status:      models.RunStatusRunning,
		TriggeredBy: triggeredBy,
	}
	if err := o.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}

	slog.Info("开始校验运行",
		"run_id", run.ID,
		"dataset_id", dataset.ID,
		"source_table", dataset.SourceTable,
		"triggered_by", triggeredBy)

	tableSnapshot, err := o.provider.Fetch(ctx, dataset.SourceTable)
	if err != nil {
		slog.Error("快照采样失败，运行标记为failed",
			"run_id", run.ID, "dataset_id", dataset.ID, "error", err)
		o.finalizeFailed(ctx, run, fmt.Sprintf("快照采样失败: %v", err), started)
		return run, nil
	}

	results := o.library.RunAll(tableSnapshot)

	// 零行快照：健康分记为0，不产生检查结果与异常
	healthScore := 0.0
	if tableSnapshot.RowCount > 0 {
		healthScore = o.engine.HealthScore(results)
	}

	now := time.Now()
	dataset.HealthScore = healthScore
	dataset.LastIngest = &now
	if err := o.db.Model(&models.Dataset{}).Where("id = ?", dataset.ID).
		Updates(map[string]interface{}{"health_score": healthScore, "last_ingest": now}).Error; err != nil {
		o.finalizeFailed(ctx, run, fmt.Sprintf("更新数据集健康分失败: %v", err), started)
		return run, nil
	}

	extracted := &anomaly.ExtractResult{}
	if tableSnapshot.RowCount > 0 {
		extracted, err = o.extractor.Extract(dataset.ID, run.ID, results)
		if err != nil {
			o.finalizeFailed(ctx, run, fmt.Sprintf("异常提取失败: %v", err), started)
			return run, nil
		}
	}

	// 指标与检出事件只针对新建异常
	for _, record := range extracted.Created {
		anomaliesDetected.WithLabelValues(record.IssueType).Inc()
		o.publisher.PublishAnomalyDetected(ctx, record)
	}

	// 新建与去重更新的异常都进入解释与路由：
	// 去重命中的异常必然仍是open（如上次自动修复失败），本轮重新处置
	for _, record := range extracted.All() {
		explanation := o.explainer.Explain(ctx, record)
		record.LLMExplanation = explanation.ToJSONB()
		if err := o.db.Save(record).Error; err != nil {
			slog.Error("保存异常解释失败", "anomaly_id", record.ID, "error", err)
		}

		if err := o.router.Route(ctx, &dataset, record); err != nil {
			slog.Error("异常动作路由失败", "anomaly_id", record.ID, "error", err)
		}
	}

	checkSummaries := make([]interface{}, 0, len(results))
	failedCount := 0
	for _, result := range results {
		if !result.Passed {
			failedCount++
		}
		checkSummaries = append(checkSummaries, map[string]interface{}{
			"check_type":  result.CheckType,
			"table_name":  result.TableName,
			"column_name": result.ColumnName,
			"passed":      result.Passed,
			"severity":    result.Severity,
			"value":       result.Value,
			"threshold":   result.Threshold,
		})
	}

	finished := time.Now()
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &finished
	run.Summary = models.JSONB{
		"health_score":      healthScore,
		"health_band":       scoring.Band(healthScore),
		"row_count":         tableSnapshot.RowCount,
		"checks_total":      len(results),
		"checks_failed":     failedCount,
		"anomalies_created": len(extracted.Created),
		"anomalies_updated": len(extracted.Updated),
		"check_results":     checkSummaries,
	}
	if err := o.db.Save(run).Error; err != nil {
		return nil, fmt.Errorf("归档运行记录失败: %w", err)
	}

	runsTotal.WithLabelValues(models.RunStatusCompleted).Inc()
	runDuration.Observe(time.Since(started).Seconds())
	datasetHealthScore.WithLabelValues(dataset.Name).Set(healthScore)
	o.publisher.PublishRunCompleted(ctx, run, healthScore)

	slog.Info("校验运行完成",
		"run_id", run.ID,
		"dataset_id", dataset.ID,
		"health_score", healthScore,
		"checks_total", len(results),
		"anomalies_created", len(extracted.Created),
		"duration_ms", time.Since(started).Milliseconds())

	return run, nil
}

// finalizeFailed 将运行标记为failed并记录原因
func (o *Orchestrator) finalizeFailed(ctx context.Context, run *models.Run, reason string, started time.Time) {
	finished := time.Now()
	run.Status = models.RunStatusFailed
	run.FinishedAt = &finished
	run.Summary = models.JSONB{"error": reason}

	if err := o.db.Save(run).Error; err != nil {
		slog.Error("保存失败运行记录失败", "run_id", run.ID, "error", err)
	}

	runsTotal.WithLabelValues(models.RunStatusFailed).Inc()
	runDuration.Observe(time.Since(started).Seconds())
	o.publisher.PublishRunFailed(ctx, run, reason)
}
