/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移与全局服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 应用启动时执行初始化流程：数据库 -> 迁移 -> 服务装配 -> 调度器
 * @rules 确保所有依赖服务正常启动后才提供API服务；Redis/Kafka/LLM不可用时降级运行
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"datasentinel-service/service/action"
	"datasentinel-service/service/anomaly"
	"datasentinel-service/service/checks"
	"datasentinel-service/service/distributed_lock"
	"datasentinel-service/service/event"
	"datasentinel-service/service/explain"
	"datasentinel-service/service/issuetracker"
	"datasentinel-service/service/models"
	"datasentinel-service/service/notify"
	"datasentinel-service/service/runner"
	"datasentinel-service/service/scoring"
	"datasentinel-service/service/snapshot"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                 *gorm.DB
	GlobalOrchestrator *runner.Orchestrator
	GlobalScheduler    *runner.Scheduler
	GlobalRouter       *action.Router
	GlobalPublisher    *event.Publisher
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "datasentinel")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := DB.AutoMigrate(
		&models.Dataset{},
		&models.Run{},
		&models.Anomaly{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	// 事件发布（Kafka未配置时为空操作）
	brokers := strings.Split(getEnvWithDefault("KAFKA_BROKERS", ""), ",")
	topic := getEnvWithDefault("KAFKA_TOPIC", "datasentinel.events")
	GlobalPublisher = event.NewPublisher(brokers, topic)

	// 检查与评分引擎
	library := checks.NewLibrary(checks.DefaultThresholds())
	engine := scoring.NewEngine(scoring.DefaultWeights())

	// 异常提取
	extractor := anomaly.NewExtractor(DB)

	// LLM解释适配器（API Key缺失时始终降级）
	var backend explain.Backend
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		model := getEnvWithDefault("LLM_MODEL", "claude-sonnet-4-20250514")
		backend = explain.NewAnthropicBackend(apiKey, model)
	} else {
		log.Println("ANTHROPIC_API_KEY未配置，异常解释将使用降级结果")
	}
	llmTimeout := 30 * time.Second
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			llmTimeout = time.Duration(n) * time.Second
		}
	}
	explainer := explain.NewExplainer(backend, llmTimeout)

	// 通知渠道装配
	smtpPort, _ := strconv.Atoi(getEnvWithDefault("SMTP_PORT", "25"))
	var smtpRecipients []string
	if v := os.Getenv("SMTP_RECIPIENTS"); v != "" {
		smtpRecipients = strings.Split(v, ",")
	}
	senders := []notify.Sender{
		notify.NewWebhookChannel(os.Getenv("NOTIFY_WEBHOOK_URL")),
		notify.NewEmailChannel(
			os.Getenv("SMTP_SERVER"), smtpPort,
			os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"),
			getEnvWithDefault("SMTP_FROM", "datasentinel@example.com"),
			smtpRecipients),
		notify.NewMQTTChannel(
			os.Getenv("MQTT_BROKER_URL"),
			getEnvWithDefault("MQTT_TOPIC", "datasentinel/anomalies"),
			getEnvWithDefault("MQTT_CLIENT_ID", "datasentinel-service")),
	}
	fanout := notify.NewFanout(senders...)

	// GitHub工单连接器
	tracker := issuetracker.NewGitHubTracker(
		os.Getenv("GITHUB_TOKEN"),
		os.Getenv("GITHUB_OWNER"),
		os.Getenv("GITHUB_REPO"))

	// 动作路由器
	GlobalRouter = action.NewRouter(DB, action.DefaultPolicy(),
		action.NewAutoFixRecorder(), fanout, tracker)

	// 快照采样使用独立的源库连接，未配置时回退主库
	sourceDB := DB
	if sourceDSN := os.Getenv("SOURCE_DATABASE_URL"); sourceDSN != "" {
		db, err := gorm.Open(postgres.Open(sourceDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("源数据库连接失败: %v", err)
		}
		sourceDB = db
	}
	sampleSize := snapshot.DefaultSampleSize
	if v := os.Getenv("SNAPSHOT_SAMPLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sampleSize = n
		}
	}
	provider := snapshot.NewSQLProvider(sourceDB, sampleSize)

	GlobalOrchestrator = runner.NewOrchestrator(DB, provider, library, engine,
		extractor, explainer, GlobalRouter, GlobalPublisher)

	// 分布式锁（Redis不可用时调度器退化为单实例模式）
	var lockExecutor *distributed_lock.LockExecutor
	if redisLock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("Redis分布式锁初始化失败，调度器以单实例模式运行: %v", err)
	} else {
		lockExecutor = distributed_lock.NewLockExecutor(redisLock)
	}

	GlobalScheduler = runner.NewScheduler(DB, GlobalOrchestrator, lockExecutor)
	if err := GlobalScheduler.Start(); err != nil {
		log.Printf("定时校验调度器启动失败: %v", err)
	}

	log.Println("服务初始化完成")
}
