package dto

// CreateJobRequest 创建克隆任务请求
type CreateJobRequest struct {
	TargetName  string `json:"target_name" binding:"required,max=100"`
	CustomName  string `json:"custom_name,omitempty" binding:"omitempty,max=100"`
	Description string `json:"description,omitempty" binding:"omitempty,max=2000"`
	SourceURL   string `json:"source_url,omitempty" binding:"omitempty,url"`
}

// CreateJobResponse 创建克隆任务响应
type CreateJobResponse struct {
	JobID  int64  `json:"job_id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// JobListItem 任务列表项
type JobListItem struct {
	ID             int64  `json:"id"`
	Slug           string `json:"slug"`
	TargetName     string `json:"target_name"`
	Status         string `json:"status"`
	CurrentStage   string `json:"current_stage,omitempty"`
	Progress       int    `json:"progress"`
	IterationCount int    `json:"iteration_count"`
	MaxIterations  int    `json:"max_iterations"`
	ParityScore    int    `json:"parity_score,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// IterationItem 迭代历史项
type IterationItem struct {
	Version         int      `json:"version"`
	ParityScore     int      `json:"parity_score"`
	FileCount       int      `json:"file_count"`
	TestsPassed     bool     `json:"tests_passed"`
	FixesApplied    int      `json:"fixes_applied"`
	MissingFeatures []string `json:"missing_features,omitempty"`
	CompletedAt     string   `json:"completed_at"`
}

// DeleteJobResponse 删除任务响应，部分清理失败只上报不阻断
type DeleteJobResponse struct {
	Deleted  bool     `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
}
