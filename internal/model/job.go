package model

import (
	"time"

	"github.com/qs3c/clone_gen_server/internal/scoring"
)

// 任务状态
const (
	StatusPending     = "pending"
	StatusResearching = "researching"
	StatusGenerating  = "generating" // 第一轮生成
	StatusIterating   = "iterating"  // 第二轮及以后
	StatusTesting     = "testing"
	StatusFixing      = "fixing"
	StatusVerifying   = "verifying"
	StatusDeploying   = "deploying"
	StatusPaused      = "paused"
	StatusComplete    = "complete"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// IsTerminal 终态判断，终态后状态不再变化
func IsTerminal(status string) bool {
	switch status {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobInput 创建任务时的不可变输入
type JobInput struct {
	TargetName  string `json:"target_name"`
	CustomName  string `json:"custom_name,omitempty"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// Analysis 调研结果，整个任务周期只写入一次
type Analysis struct {
	TargetName  string   `json:"target_name"`
	Summary     string   `json:"summary"`
	Features    []string `json:"features"`
	Pages       []string `json:"pages,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty"`
	DesignNotes string   `json:"design_notes,omitempty"`
}

// Generation 最近一轮的生成结果，每轮覆盖
type Generation struct {
	OutputDir string   `json:"output_dir"`
	FileList  []string `json:"file_list,omitempty"`
	FileCount int      `json:"file_count"`
	Errors    []string `json:"errors,omitempty"`
}

// TestResult 最近一轮的测试结果
type TestResult struct {
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failed_checks,omitempty"`
	Output       string   `json:"output,omitempty"`
}

// Fix 单条修复记录
type Fix struct {
	File        string `json:"file"`
	Description string `json:"description"`
}

// Deployment 部署结果，成功后只写入一次
type Deployment struct {
	AppURL     string    `json:"app_url"`
	AdminURL   string    `json:"admin_url,omitempty"`
	BundleURL  string    `json:"bundle_url,omitempty"` // 产物包 OSS 地址
	DeployedAt time.Time `json:"deployed_at"`
}

// CloneJob 克隆任务记录
// 产物字段序列化为 JSON 列存储，状态转换只由 worker 驱动
type CloneJob struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	Slug            string          `gorm:"size:100;not null;index" json:"slug"`
	Status          string          `gorm:"size:20;default:pending;index" json:"status"`
	Input           JobInput        `gorm:"serializer:json;type:text" json:"input"`
	Analysis        *Analysis       `gorm:"serializer:json;type:text" json:"analysis,omitempty"`
	Generation      *Generation     `gorm:"serializer:json;type:text" json:"generation,omitempty"`
	Tests           *TestResult     `gorm:"serializer:json;type:text" json:"tests,omitempty"`
	Fixes           []Fix           `gorm:"serializer:json;type:text" json:"fixes,omitempty"`
	Parity          *scoring.Report `gorm:"serializer:json;type:text" json:"parity,omitempty"`
	Differentiation *scoring.Report `gorm:"serializer:json;type:text" json:"differentiation,omitempty"`
	Deployment      *Deployment     `gorm:"serializer:json;type:text" json:"deployment,omitempty"`
	IterationCount  int             `gorm:"not null;default:0" json:"iteration_count"`
	MaxIterations   int             `gorm:"not null" json:"max_iterations"`
	CurrentStage    string          `gorm:"size:50" json:"current_stage,omitempty"`
	Progress        int             `json:"progress"`
	ErrorMessage    string          `gorm:"type:text" json:"error_message,omitempty"`
	Paused          bool            `gorm:"default:false" json:"paused"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ElapsedSeconds  int             `json:"elapsed_seconds,omitempty"`
}

func (CloneJob) TableName() string {
	return "clone_jobs"
}

// IterationRecord 迭代历史，只追加不修改
type IterationRecord struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	JobID           int64     `gorm:"not null;index" json:"job_id"`
	Version         int       `gorm:"not null" json:"version"`
	ParityScore     int       `json:"parity_score"`
	FileCount       int       `json:"file_count"`
	TestsPassed     bool      `json:"tests_passed"`
	FixesApplied    int       `json:"fixes_applied"`
	MissingFeatures []string  `gorm:"serializer:json;type:text" json:"missing_features,omitempty"` // 最多 5 条
	CompletedAt     time.Time `json:"completed_at"`
}

func (IterationRecord) TableName() string {
	return "clone_iterations"
}
