package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/clone_gen_server/internal/model/dto"
	"github.com/qs3c/clone_gen_server/internal/pkg/response"
	"github.com/qs3c/clone_gen_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// Create 创建克隆任务
// POST /api/v1/jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "请填写目标产品名称")
		return
	}

	resp, err := h.jobService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrNoModelAvailable) {
			response.ConfigError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// Get 任务详情
// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.Get(id)
	if err != nil {
		handleJobError(c, err)
		return
	}

	response.Success(c, job)
}

// List 任务列表
// GET /api/v1/jobs?limit=50
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.jobService.List(limit)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"jobs": items, "total": len(items)})
}

// Iterations 迭代历史
// GET /api/v1/jobs/:id/iterations
func (h *JobHandler) Iterations(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	items, err := h.jobService.Iterations(id)
	if err != nil {
		handleJobError(c, err)
		return
	}

	response.Success(c, gin.H{"iterations": items})
}

// Pause 暂停任务
// POST /api/v1/jobs/:id/pause
func (h *JobHandler) Pause(c *gin.Context) {
	h.control(c, h.jobService.Pause, "任务将在当前阶段完成后暂停")
}

// Resume 恢复任务
// POST /api/v1/jobs/:id/resume
func (h *JobHandler) Resume(c *gin.Context) {
	h.control(c, h.jobService.Resume, "任务已恢复")
}

// Accept 接受当前结果
// POST /api/v1/jobs/:id/accept
func (h *JobHandler) Accept(c *gin.Context) {
	h.control(c, h.jobService.Accept, "已接受当前结果，任务将直接部署")
}

// Cancel 取消任务
// POST /api/v1/jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	h.control(c, h.jobService.Cancel, "任务已取消")
}

// Iterate 追加一轮迭代
// POST /api/v1/jobs/:id/iterate
func (h *JobHandler) Iterate(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	if err := h.jobService.Iterate(c.Request.Context(), id); err != nil {
		handleJobError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已追加一轮迭代", nil)
}

// Delete 删除任务及产物
// DELETE /api/v1/jobs/:id
func (h *JobHandler) Delete(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	resp, err := h.jobService.Delete(c.Request.Context(), id)
	if err != nil {
		handleJobError(c, err)
		return
	}

	response.Success(c, resp)
}

// control 控制类接口的公共流程
func (h *JobHandler) control(c *gin.Context, op func(context.Context, int64) error, okMsg string) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		handleJobError(c, err)
		return
	}

	response.SuccessWithMessage(c, okMsg, nil)
}

func parseJobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "任务 ID 不合法")
		return 0, false
	}
	return id, true
}

func handleJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrJobTerminal),
		errors.Is(err, service.ErrJobNotPaused),
		errors.Is(err, service.ErrIterateNotAllowed):
		response.PreconditionError(c, err.Error())
	case errors.Is(err, service.ErrNoModelAvailable):
		response.ConfigError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
