/*
 * @module service/runner/metrics
 * @description 流水线Prometheus指标定义：运行计数、时延、异常计数、健康分
 * @architecture 服务层 - 可观测性
 * @documentReference dev_docs/requirements.md
 * @stateFlow 指标注册 -> 流水线执行时更新 -> /metrics暴露
 * @rules 指标在包初始化时注册到默认Registry；标签基数受控（数据集名、状态、问题类型）
 * @dependencies github.com/prometheus/client_golang
 * @refs service/runner/orchestrator.go, main.go
 */

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datasentinel",
		Name:      "runs_total",
		Help:      "校验运行总数，按最终状态分类",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "datasentinel",
		Name:      "run_duration_seconds",
		Help:      "单次校验运行耗时",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	anomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datasentinel",
		Name:      "anomalies_detected_total",
		Help:      "检出异常总数，按问题类型分类",
	}, []string{"issue_type"})

	datasetHealthScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "datasentinel",
		Name:      "dataset_health_score",
		Help:      "数据集最近一次校验的健康分",
	}, []string{"dataset"})
)
