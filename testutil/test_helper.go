/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"datasentinel-service/service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Dataset{},
		&models.Run{},
		&models.Anomaly{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"anomalies",
		"runs",
		"datasets",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// DatasetOption 数据集选项函数类型
type DatasetOption func(*models.Dataset)

// CreateDataset 创建测试数据集
func (f *TestDataFactory) CreateDataset(opts ...DatasetOption) *models.Dataset {
	dataset := &models.Dataset{
		Name:        "测试数据集_" + generateSuffix(),
		Description: "这是一个测试数据集",
		Owner:       "owner@example.com",
		SourceTable: "orders",
		HealthScore: 1.0,
		CreatedBy:   "test",
		UpdatedBy:   "test",
	}

	// 应用选项
	for _, opt := range opts {
		opt(dataset)
	}

	err := f.DB.Create(dataset).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test dataset: %v", err))
	}

	return dataset
}

// RunOption 运行记录选项函数类型
type RunOption func(*models.Run)

// CreateRun 创建测试运行记录
func (f *TestDataFactory) CreateRun(datasetID string, opts ...RunOption) *models.Run {
	run := &models.Run{
		DatasetID:   datasetID,
		Status:      models.RunStatusRunning,
		TriggeredBy: "test",
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test run: %v", err))
	}

	return run
}

// AnomalyOption 异常选项函数类型
type AnomalyOption func(*models.Anomaly)

// CreateAnomaly 创建测试异常
func (f *TestDataFactory) CreateAnomaly(datasetID string, opts ...AnomalyOption) *models.Anomaly {
	record := &models.Anomaly{
		DatasetID:   datasetID,
		TableName:   "orders",
		ColumnName:  "amount",
		IssueType:   models.IssueTypeNullRate,
		Severity:    2,
		Status:      models.AnomalyStatusOpen,
		Description: "测试异常",
		Extra:       models.JSONB{"value": 0.2, "threshold": 0.1},
		DetectedAt:  time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(record)
	}

	err := f.DB.Create(record).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test anomaly: %v", err))
	}

	return record
}

// 辅助函数
func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000000)
}
