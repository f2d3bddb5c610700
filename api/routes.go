/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package api

import (
	"datasentinel-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据集管理
	r.Route("/datasets", func(r chi.Router) {
		datasetController := controllers.NewDatasetController()

		r.Post("/", datasetController.CreateDataset)
		r.Get("/", datasetController.GetDatasets)
		r.Get("/{id}", datasetController.GetDataset)
		r.Put("/{id}", datasetController.UpdateDataset)

		// 同步触发一次校验流水线
		r.Post("/{id}/run", datasetController.TriggerRun)
	})

	// 校验运行记录
	r.Route("/runs", func(r chi.Router) {
		runController := controllers.NewRunController()

		r.Get("/", runController.GetRuns)
		r.Get("/{id}", runController.GetRun)
	})

	// 异常管理
	r.Route("/anomalies", func(r chi.Router) {
		anomalyController := controllers.NewAnomalyController()

		r.Get("/", anomalyController.GetAnomalies)
		r.Get("/{id}", anomalyController.GetAnomaly)

		// 高严重度异常的人工审批
		r.Post("/{id}/approve", anomalyController.ApproveAnomaly)
	})
}
