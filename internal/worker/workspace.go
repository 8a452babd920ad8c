package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JobWorkspace 任务工作目录，cron 清理按 job_ 前缀识别
func JobWorkspace(baseDir string, jobID int64, slug string) string {
	return filepath.Join(baseDir, fmt.Sprintf("job_%d_%s", jobID, slug))
}

// IterationDir 某一轮迭代的产物目录，每轮独立目录便于对比回溯
func IterationDir(baseDir string, jobID int64, slug string, version int) string {
	return filepath.Join(JobWorkspace(baseDir, jobID, slug), fmt.Sprintf("v%d", version))
}

// EnsureWorkspace 创建任务工作目录
func EnsureWorkspace(baseDir string, jobID int64, slug string) (string, error) {
	dir := JobWorkspace(baseDir, jobID, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// CleanupWorkspace 删除任务工作目录
// 只允许删除 baseDir 之内的目录，防止配置错误误删
func CleanupWorkspace(baseDir string, jobID int64, slug string) error {
	dir := JobWorkspace(baseDir, jobID, slug)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base dir: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace dir: %w", err)
	}

	if !strings.HasPrefix(absDir, absBase+string(filepath.Separator)) {
		return fmt.Errorf("refusing to delete directory outside workspace: %s", absDir)
	}

	return os.RemoveAll(absDir)
}
