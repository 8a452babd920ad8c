package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/clone_gen_server/internal/model"
)

// TestCloneJob 创建测试克隆任务
func TestCloneJob(t *testing.T, db *gorm.DB, opts ...func(*model.CloneJob)) *model.CloneJob {
	t.Helper()

	job := &model.CloneJob{
		Slug:   fmt.Sprintf("testapp-%d", time.Now().UnixNano()%100000),
		Status: model.StatusPending,
		Input: model.JobInput{
			TargetName: "TestApp",
		},
		MaxIterations: 5,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithStatus 设置任务状态
func WithStatus(status string) func(*model.CloneJob) {
	return func(j *model.CloneJob) {
		j.Status = status
	}
}

// WithAnalysis 设置调研结果
func WithAnalysis(features ...string) func(*model.CloneJob) {
	return func(j *model.CloneJob) {
		j.Analysis = &model.Analysis{
			TargetName: j.Input.TargetName,
			Summary:    "test summary",
			Features:   features,
		}
	}
}

// WithIterations 设置迭代计数与上限
func WithIterations(count, max int) func(*model.CloneJob) {
	return func(j *model.CloneJob) {
		j.IterationCount = count
		j.MaxIterations = max
	}
}

// WithPaused 设置暂停标记
func WithPaused() func(*model.CloneJob) {
	return func(j *model.CloneJob) {
		j.Paused = true
	}
}

// TestIteration 创建测试迭代历史
func TestIteration(t *testing.T, db *gorm.DB, jobID int64, version, parityScore int) *model.IterationRecord {
	t.Helper()

	rec := &model.IterationRecord{
		JobID:       jobID,
		Version:     version,
		ParityScore: parityScore,
		FileCount:   10,
		TestsPassed: true,
		CompletedAt: time.Now(),
	}

	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test iteration: %v", err)
	}

	return rec
}
