/*
 * @module api/controllers/dataset_controller
 * @description 数据集控制器，提供数据集注册、查询、更新与校验触发接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式；调度配置变更后重载调度器
 * @dependencies datasentinel-service/service, github.com/go-chi/chi/v5
 * @refs dev_docs/model.md
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"datasentinel-service/service"
	"datasentinel-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"
)

// DatasetController 数据集控制器
type DatasetController struct{}

// NewDatasetController 创建数据集控制器实例
func NewDatasetController() *DatasetController {
	return &DatasetController{}
}

// CreateDataset 注册数据集
// @Summary 注册数据集
// @Description 注册新的被监控数据集
// @Tags 数据集
// @Accept json
// @Produce json
// @Param dataset body models.Dataset true "数据集信息"
// @Success 201 {object} APIResponse{data=models.Dataset} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /datasets [post]
func (c *DatasetController) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var dataset models.Dataset
	if err := render.DecodeJSON(r.Body, &dataset); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if dataset.Name == "" || dataset.SourceTable == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "数据集名称和源表不能为空",
		})
		return
	}

	dataset.HealthScore = 1.0
	if err := service.DB.Create(&dataset).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "创建数据集失败",
		})
		return
	}

	if dataset.IsScheduleEnabled {
		if err := service.GlobalScheduler.Reload(); err != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusInternalServerError,
				Msg:    "重载调度器失败",
			})
			return
		}
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建数据集成功",
		Data:   dataset,
	})
}

// GetDatasets 获取数据集列表
// @Summary 获取数据集列表
// @Description 分页获取数据集列表
// @Tags 数据集
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.Dataset} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /datasets [get]
func (c *DatasetController) GetDatasets(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	var datasets []models.Dataset
	var total int64

	if err := service.DB.Model(&models.Dataset{}).Count(&total).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取数据集列表失败",
		})
		return
	}

	if err := service.DB.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&datasets).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取数据集列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取数据集列表成功",
		Data:   datasets,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetDataset 获取数据集详情
// @Summary 获取数据集详情
// @Description 根据ID获取数据集详情
// @Tags 数据集
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=models.Dataset} "获取成功"
// @Failure 404 {object} APIResponse "数据集不存在"
// @Router /datasets/{id} [get]
func (c *DatasetController) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dataset models.Dataset
	if err := service.DB.First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "数据集不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取数据集失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取数据集成功",
		Data:   dataset,
	})
}

// UpdateDataset 更新数据集
// @Summary 更新数据集
// @Description 更新数据集配置（负责人、调度、策略覆盖等）
// @Tags 数据集
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param dataset body models.Dataset true "数据集信息"
// @Success 200 {object} APIResponse{data=models.Dataset} "更新成功"
// @Failure 404 {object} APIResponse "数据集不存在"
// @Router /datasets/{id} [put]
func (c *DatasetController) UpdateDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var existing models.Dataset
	if err := service.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "数据集不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取数据集失败",
		})
		return
	}

	var updates models.Dataset
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	updates.ID = existing.ID
	if err := service.DB.Model(&existing).Updates(map[string]interface{}{
		"description":         updates.Description,
		"owner":               updates.Owner,
		"cron_expression":     updates.CronExpression,
		"is_schedule_enabled": updates.IsScheduleEnabled,
		"policy_config":       updates.PolicyConfig,
		"updated_by":          updates.UpdatedBy,
	}).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "更新数据集失败",
		})
		return
	}

	if err := service.GlobalScheduler.Reload(); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "重载调度器失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "更新数据集成功",
		Data:   existing,
	})
}

// TriggerRun 触发校验运行
// @Summary 触发校验运行
// @Description 对数据集同步执行一次完整校验流水线
// @Tags 数据集
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=models.Run} "运行完成"
// @Failure 404 {object} APIResponse "数据集不存在"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /datasets/{id}/run [post]
func (c *DatasetController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dataset models.Dataset
	if err := service.DB.First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "数据集不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取数据集失败",
		})
		return
	}

	run, err := service.GlobalOrchestrator.RunDataset(r.Context(), id, "api")
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "执行校验运行失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "校验运行完成",
		Data:   run,
	})
}
