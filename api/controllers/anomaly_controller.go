/*
 * @module api/controllers/anomaly_controller
 * @description 异常控制器，提供异常查询与人工审批接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程；审批请求转发至动作路由器状态机
 * @rules 统一的错误处理和响应格式；非法状态流转返回409
 * @dependencies datasentinel-service/service, github.com/go-chi/chi/v5
 * @refs service/action/router.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"datasentinel-service/service"
	"datasentinel-service/service/action"
	"datasentinel-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"
)

// AnomalyController 异常控制器
type AnomalyController struct{}

// NewAnomalyController 创建异常控制器实例
func NewAnomalyController() *AnomalyController {
	return &AnomalyController{}
}

// ApprovalRequest 审批请求体
type ApprovalRequest struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by"`
}

// GetAnomalies 获取异常列表
// @Summary 获取异常列表
// @Description 分页获取异常记录，可按数据集、状态和问题类型过滤
// @Tags 异常
// @Produce json
// @Param dataset_id query string false "数据集ID"
// @Param status query string false "异常状态" Enums(open, pending_approval, resolved, rejected)
// @Param issue_type query string false "问题类型" Enums(null_rate, type_consistency, uniqueness, outliers)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.Anomaly} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /anomalies [get]
func (c *AnomalyController) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	query := service.DB.Model(&models.Anomaly{})
	if datasetID := r.URL.Query().Get("dataset_id"); datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if issueType := r.URL.Query().Get("issue_type"); issueType != "" {
		query = query.Where("issue_type = ?", issueType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取异常列表失败",
		})
		return
	}

	var anomalies []models.Anomaly
	if err := query.Order("detected_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&anomalies).Error; err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取异常列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取异常列表成功",
		Data:   anomalies,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetAnomaly 获取异常详情
// @Summary 获取异常详情
// @Description 根据ID获取异常记录，包含LLM解释与动作记录
// @Tags 异常
// @Produce json
// @Param id path string true "异常ID"
// @Success 200 {object} APIResponse{data=models.Anomaly} "获取成功"
// @Failure 404 {object} APIResponse "异常不存在"
// @Router /anomalies/{id} [get]
func (c *AnomalyController) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var record models.Anomaly
	if err := service.DB.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "异常不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取异常失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取异常成功",
		Data:   record,
	})
}

// ApproveAnomaly 审批异常
// @Summary 审批异常
// @Description 对待审批异常做出批准或驳回决议；批准后创建工单并关闭异常
// @Tags 异常
// @Accept json
// @Produce json
// @Param id path string true "异常ID"
// @Param approval body ApprovalRequest true "审批决议"
// @Success 200 {object} APIResponse{data=models.Anomaly} "审批成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 409 {object} APIResponse "异常状态不允许审批"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /anomalies/{id}/approve [post]
func (c *AnomalyController) ApproveAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var request ApprovalRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	record, err := service.GlobalRouter.Approve(r.Context(), id, request.Approved, request.ApprovedBy)
	if err != nil {
		if errors.Is(err, action.ErrInvalidTransition) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusConflict,
				Msg:    "异常状态不允许审批",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "审批处理失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "审批处理成功",
		Data:   record,
	})
}
