package cron

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/clone_gen_server/internal/repository"
)

// Service 定时清理：过期工作目录 + 过期终态任务
type Service struct {
	jobRepo       *repository.JobRepository
	iterRepo      *repository.IterationRepository
	workspaceDir  string
	expireHours   int
	jobRetainDays int
	stopChan      chan struct{}
}

func NewService(
	jobRepo *repository.JobRepository,
	iterRepo *repository.IterationRepository,
	workspaceDir string,
	expireHours int,
	jobRetainDays int,
) *Service {
	return &Service{
		jobRepo:       jobRepo,
		iterRepo:      iterRepo,
		workspaceDir:  workspaceDir,
		expireHours:   expireHours,
		jobRetainDays: jobRetainDays,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (workspace + job cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CleanupAll()
		}
	}
}

// CleanupAll 执行所有清理任务，供定时器和手动命令共用
func (s *Service) CleanupAll() {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 24
	}

	c1 := s.cleanupWorkspaces(time.Duration(expireHours) * time.Hour)
	c2 := s.pruneTerminalJobs()

	if c1+c2 > 0 {
		log.Printf("Cleanup summary: workspaces=%d, jobs=%d", c1, c2)
	}
}

// cleanupWorkspaces 清理过期的生成代码工作目录（<workspace_dir>/job_<id>_*）
func (s *Service) cleanupWorkspaces(expireDuration time.Duration) int {
	if s.workspaceDir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.workspaceDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup workspaces: failed to read dir %s: %v", s.workspaceDir, err)
		}
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "job_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			dirPath := filepath.Join(s.workspaceDir, entry.Name())
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("Cleanup workspaces: failed to remove %s: %v", dirPath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}

// pruneTerminalJobs 删除超过保留期的终态任务及其迭代历史
func (s *Service) pruneTerminalJobs() int {
	if s.jobRetainDays <= 0 || s.jobRepo == nil {
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -s.jobRetainDays)

	// 先收集待删任务，级联清理迭代历史
	jobs, err := s.jobRepo.List(1000)
	if err != nil {
		log.Printf("Cleanup jobs: failed to list jobs: %v", err)
		return 0
	}
	for _, job := range jobs {
		if job.UpdatedAt.Before(cutoff) && s.iterRepo != nil {
			if err := s.iterRepo.DeleteByJobID(job.ID); err != nil {
				log.Printf("Cleanup jobs: failed to delete iterations for job %d: %v", job.ID, err)
			}
		}
	}

	deleted, err := s.jobRepo.DeleteTerminalBefore(cutoff)
	if err != nil {
		log.Printf("Cleanup jobs: failed to prune terminal jobs: %v", err)
		return 0
	}
	return int(deleted)
}
