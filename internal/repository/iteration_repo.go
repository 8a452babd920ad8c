package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/clone_gen_server/internal/model"
)

type IterationRepository struct {
	db *gorm.DB
}

func NewIterationRepository(db *gorm.DB) *IterationRepository {
	return &IterationRepository{db: db}
}

// Create 追加一条迭代历史，历史只增不改
func (r *IterationRepository) Create(rec *model.IterationRecord) error {
	return r.db.Create(rec).Error
}

// ListByJobID 按版本升序返回任务的全部迭代历史
func (r *IterationRepository) ListByJobID(jobID int64) ([]*model.IterationRecord, error) {
	var records []*model.IterationRecord
	err := r.db.Where("job_id = ?", jobID).Order("version ASC").Find(&records).Error
	return records, err
}

// CountByJobID 迭代历史条数
func (r *IterationRepository) CountByJobID(jobID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.IterationRecord{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}

// DeleteByJobID 删除任务时级联清理历史
func (r *IterationRepository) DeleteByJobID(jobID int64) error {
	return r.db.Where("job_id = ?", jobID).Delete(&model.IterationRecord{}).Error
}
