/*
 * @module api/controllers/run_controller
 * @description 校验运行控制器，提供运行记录查询接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式
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

// RunController 校验运行控制器
type RunController struct{}

// NewRunController 创建校验运行控制器实例
func NewRunController() *RunController {
	return &RunController{}
}

// GetRuns 获取运行记录列表
// @Summary 获取运行记录列表
// @Description 分页获取校验运行记录，可按数据集和状态过滤
// @Tags 校验运行
// @Produce json
// @Param dataset_id query string false "数据集ID"
// @Param status query string false "运行状态" Enums(running, completed, failed)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.Run} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /runs [get]
func (c *RunController) GetRuns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	query := service.DB.Model(&models.Run{})
	if datasetID := r.URL.Query().Get("dataset_id"); datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取运行记录列表失败",
		})
		return
	}

	var runs []models.Run
	if err := query.Order("started_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&runs).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取运行记录列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取运行记录列表成功",
		Data:   runs,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetRun 获取运行记录详情
// @Summary 获取运行记录详情
// @Description 根据ID获取单次校验运行的完整汇总
// @Tags 校验运行
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=models.Run} "获取成功"
// @Failure 404 {object} APIResponse "运行记录不存在"
// @Router /runs/{id} [get]
func (c *RunController) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var run models.Run
	if err := service.DB.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "运行记录不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取运行记录失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取运行记录成功",
		Data:   run,
	})
}
