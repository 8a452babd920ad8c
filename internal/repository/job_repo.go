package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/clone_gen_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.CloneJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.CloneJob, error) {
	var job model.CloneJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateArtifacts 持久化 worker 侧的产物与计数快照
// 只写产物列，paused/accepted_at 等控制列归 API 进程管，终态不允许被覆盖
func (r *JobRepository) UpdateArtifacts(job *model.CloneJob) error {
	return r.db.Model(job).
		Where("status NOT IN ?", terminalStatuses()).
		Select("analysis", "generation", "tests", "fixes", "parity",
			"differentiation", "deployment", "iteration_count", "started_at").
		Updates(job).Error
}

// UpdatePaused 写暂停标记列，终态不生效
func (r *JobRepository) UpdatePaused(id int64, paused bool) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Update("paused", paused).Error
}

// MarkAccepted 记录接受时间并清掉暂停标记，重复调用不改时间戳
func (r *JobRepository) MarkAccepted(id int64, at time.Time) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND accepted_at IS NULL AND status NOT IN ?", id, terminalStatuses()).
		Updates(map[string]interface{}{
			"accepted_at": at,
			"paused":      false,
		}).Error
}

// Reopen 把已完成的任务拉回 pending 并抬高一轮迭代上限
func (r *JobRepository) Reopen(id int64) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status = ?", id, model.StatusComplete).
		Updates(map[string]interface{}{
			"status":         model.StatusPending,
			"max_iterations": gorm.Expr("max_iterations + 1"),
			"completed_at":   nil,
		}).Error
}

// RaiseCeiling 抬高一轮迭代上限，暂停中追加迭代用
func (r *JobRepository) RaiseCeiling(id int64) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Update("max_iterations", gorm.Expr("max_iterations + 1")).Error
}

// UpdateStatus 更新状态，终态不允许被覆盖
func (r *JobRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Update("status", status).Error
}

// UpdateStage 更新状态与进度快照，终态不允许被覆盖
func (r *JobRepository) UpdateStage(id int64, status, stage string, progress int) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Updates(map[string]interface{}{
			"status":        status,
			"current_stage": stage,
			"progress":      progress,
		}).Error
}

// List 按创建时间倒序列出任务
func (r *JobRepository) List(limit int) ([]*model.CloneJob, error) {
	var jobs []*model.CloneJob
	err := r.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// ListActive 列出非终态任务，worker 重启恢复用
func (r *JobRepository) ListActive() ([]*model.CloneJob, error) {
	var jobs []*model.CloneJob
	err := r.db.Where("status NOT IN ?", terminalStatuses()).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) Delete(id int64) error {
	return r.db.Where("id = ?", id).Delete(&model.CloneJob{}).Error
}

// Finish 写入终态与完成时间
// 已是终态或已被删除的任务不生效，不会复活已删除的行
func (r *JobRepository) Finish(id int64, status, errMsg string, elapsedSeconds int) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Updates(map[string]interface{}{
			"status":          status,
			"error_message":   errMsg,
			"completed_at":    time.Now(),
			"elapsed_seconds": elapsedSeconds,
		}).Error
}

// Complete 完成收尾：终态、最终进度与完成时间一次写入
func (r *JobRepository) Complete(id int64, stage string, elapsedSeconds int) error {
	return r.db.Model(&model.CloneJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Updates(map[string]interface{}{
			"status":          model.StatusComplete,
			"current_stage":   stage,
			"progress":        100,
			"completed_at":    time.Now(),
			"elapsed_seconds": elapsedSeconds,
		}).Error
}

// DeleteTerminalBefore 清理早于指定时间的终态任务，返回删除数
func (r *JobRepository) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("status IN ? AND updated_at < ?", terminalStatuses(), cutoff).
		Delete(&model.CloneJob{})
	return result.RowsAffected, result.Error
}

func terminalStatuses() []string {
	return []string{model.StatusComplete, model.StatusFailed, model.StatusCancelled}
}
