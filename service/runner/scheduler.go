/*
 * @module service/runner/scheduler
 * @description 定时校验调度器，按数据集cron表达式周期性触发校验流水线
 * @architecture 服务层 - 任务调度
 * @documentReference dev_docs/requirements.md
 * @stateFlow 加载启用调度的数据集 -> 注册cron任务 -> 到期在分布式锁保护下执行 -> 配置变更后重载
 * @rules 同一数据集的定时校验在多实例间由Redis锁保证单实例执行；cron表达式非法时跳过该数据集并记录日志
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm
 * @refs service/runner/orchestrator.go, service/distributed_lock/redis_lock.go
 */

package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"datasentinel-service/service/distributed_lock"
	"datasentinel-service/service/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// 单数据集定时校验的锁TTL
const scheduledRunLockTTL = 10 * time.Minute

// Scheduler 定时校验调度器
type Scheduler struct {
	db           *gorm.DB
	orchestrator *Orchestrator
	lockExecutor *distributed_lock.LockExecutor
	cron         *cron.Cron
	entries      map[string]cron.EntryID // dataset_id -> cron entry
	mutex        sync.Mutex
	started      bool
}

// NewScheduler 创建调度器；lockExecutor为nil时退化为单实例模式
func NewScheduler(db *gorm.DB, orchestrator *Orchestrator, lockExecutor *distributed_lock.LockExecutor) *Scheduler {
	return &Scheduler{
		db:           db,
		orchestrator: orchestrator,
		lockExecutor: lockExecutor,
		cron:         cron.New(cron.WithSeconds()),
		entries:      make(map[string]cron.EntryID),
	}
}

// Start 启动调度器并加载全部启用调度的数据集
func (s *Scheduler) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return nil
	}

	if err := s.loadLocked(); err != nil {
		return err
	}

	s.cron.Start()
	s.started = true
	slog.Info("定时校验调度器已启动", "scheduled_datasets", len(s.entries))
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
	slog.Info("定时校验调度器已停止")
}

// Reload 重载调度配置，数据集调度变更后调用
func (s *Scheduler) Reload() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for datasetID, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, datasetID)
	}

	return s.loadLocked()
}

// loadLocked 加载启用调度的数据集并注册cron任务（调用方持锁）
func (s *Scheduler) loadLocked() error {
	var datasets []models.Dataset
	if err := s.db.Where("is_schedule_enabled = ? AND cron_expression <> ''", true).
		Find(&datasets).Error; err != nil {
		return err
	}

	for _, dataset := range datasets {
		datasetID := dataset.ID
		entryID, err := s.cron.AddFunc(dataset.CronExpression, func() {
			s.executeScheduledRun(datasetID)
		})
		if err != nil {
			slog.Warn("cron表达式非法，跳过该数据集的定时调度",
				"dataset_id", dataset.ID,
				"cron_expression", dataset.CronExpression,
				"error", err)
			continue
		}
		s.entries[dataset.ID] = entryID
	}

	return nil
}

// executeScheduledRun 在分布式锁保护下执行一次定时校验
func (s *Scheduler) executeScheduledRun(datasetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunLockTTL)
	defer cancel()

	runOnce := func() error {
		_, err := s.orchestrator.RunDataset(ctx, datasetID, "scheduler")
		return err
	}

	var err error
	if s.lockExecutor != nil {
		err = s.lockExecutor.ExecuteWithLock(ctx, datasetID, scheduledRunLockTTL, runOnce)
	} else {
		err = runOnce()
	}

	if err != nil {
		slog.Error("定时校验执行失败", "dataset_id", datasetID, "error", err)
	}
}
