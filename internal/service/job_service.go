package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/model/dto"
	"github.com/qs3c/clone_gen_server/internal/pkg/oss"
	"github.com/qs3c/clone_gen_server/internal/pkg/pubsub"
	"github.com/qs3c/clone_gen_server/internal/pkg/queue"
	"github.com/qs3c/clone_gen_server/internal/registry"
	"github.com/qs3c/clone_gen_server/internal/repository"
	"github.com/qs3c/clone_gen_server/internal/stage"
	"github.com/qs3c/clone_gen_server/internal/worker"
)

var (
	ErrJobNotFound       = errors.New("克隆任务不存在")
	ErrJobTerminal       = errors.New("任务已结束，无法操作")
	ErrJobNotPaused      = errors.New("任务未处于暂停状态")
	ErrIterateNotAllowed = errors.New("当前状态不允许追加迭代")
	ErrNoModelAvailable  = errors.New("未配置可用的模型，请联系管理员")
)

// JobService 克隆任务服务
// 运行中任务的控制只置信号和控制列，产物与状态由 worker 在检查点落库
// 信号先写本地注册表，再经 Redis 控制频道镜像给 worker 进程
// 取消额外直写一次状态，让前端立即看到结果
type JobService struct {
	jobRepo   *repository.JobRepository
	iterRepo  *repository.IterationRepository
	registry  *registry.Registry
	queue     *queue.Queue
	publisher *pubsub.Publisher
	ossClient *oss.Client // 可为 nil
	deployer  stage.Deployer
	cfg       *config.Config
}

func NewJobService(
	jobRepo *repository.JobRepository,
	iterRepo *repository.IterationRepository,
	reg *registry.Registry,
	q *queue.Queue,
	publisher *pubsub.Publisher,
	ossClient *oss.Client,
	deployer stage.Deployer,
	cfg *config.Config,
) *JobService {
	return &JobService{
		jobRepo:   jobRepo,
		iterRepo:  iterRepo,
		registry:  reg,
		queue:     q,
		publisher: publisher,
		ossClient: ossClient,
		deployer:  deployer,
		cfg:       cfg,
	}
}

// Create 创建克隆任务并入队
func (s *JobService) Create(ctx context.Context, req *dto.CreateJobRequest) (*dto.CreateJobResponse, error) {
	if s.cfg.ActiveModel() == nil {
		return nil, ErrNoModelAvailable
	}

	job := &model.CloneJob{
		Slug:   makeSlug(req.CustomName, req.TargetName),
		Status: model.StatusPending,
		Input: model.JobInput{
			TargetName:  req.TargetName,
			CustomName:  req.CustomName,
			Description: req.Description,
			SourceURL:   req.SourceURL,
		},
		MaxIterations: s.cfg.Pipeline.MaxIterations,
	}

	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	s.registry.Create(job.ID)

	if err := s.queue.Push(ctx, &queue.JobMessage{JobID: job.ID, Slug: job.Slug}); err != nil {
		// 入队失败的任务不能留在 pending 等一个永远不会来的 worker
		s.jobRepo.Finish(job.ID, model.StatusFailed, "任务入队失败，请重试", 0)
		s.registry.Delete(job.ID)
		return nil, err
	}

	return &dto.CreateJobResponse{
		JobID:  job.ID,
		Slug:   job.Slug,
		Status: job.Status,
	}, nil
}

// Get 任务详情
func (s *JobService) Get(id int64) (*model.CloneJob, error) {
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// List 任务列表
func (s *JobService) List(limit int) ([]*dto.JobListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	jobs, err := s.jobRepo.List(limit)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.JobListItem, 0, len(jobs))
	for _, job := range jobs {
		item := &dto.JobListItem{
			ID:             job.ID,
			Slug:           job.Slug,
			TargetName:     job.Input.TargetName,
			Status:         job.Status,
			CurrentStage:   job.CurrentStage,
			Progress:       job.Progress,
			IterationCount: job.IterationCount,
			MaxIterations:  job.MaxIterations,
			CreatedAt:      job.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
		}
		if job.Parity != nil {
			item.ParityScore = job.Parity.Overall
		}
		items = append(items, item)
	}
	return items, nil
}

// Iterations 迭代历史
func (s *JobService) Iterations(jobID int64) ([]*dto.IterationItem, error) {
	if _, err := s.Get(jobID); err != nil {
		return nil, err
	}

	records, err := s.iterRepo.ListByJobID(jobID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.IterationItem, 0, len(records))
	for _, rec := range records {
		items = append(items, &dto.IterationItem{
			Version:         rec.Version,
			ParityScore:     rec.ParityScore,
			FileCount:       rec.FileCount,
			TestsPassed:     rec.TestsPassed,
			FixesApplied:    rec.FixesApplied,
			MissingFeatures: rec.MissingFeatures,
			CompletedAt:     rec.CompletedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// Pause 暂停任务，worker 在下一个检查点停住
func (s *JobService) Pause(ctx context.Context, id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if model.IsTerminal(job.Status) {
		return ErrJobTerminal
	}

	s.registry.Create(id)
	s.registry.SetPaused(id, true)
	s.publishControl(ctx, id, pubsub.ControlPause)

	return s.jobRepo.UpdatePaused(id, true)
}

// Resume 恢复暂停中的任务
func (s *JobService) Resume(ctx context.Context, id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if model.IsTerminal(job.Status) {
		return ErrJobTerminal
	}
	if !job.Paused && job.Status != model.StatusPaused {
		return ErrJobNotPaused
	}

	s.registry.SetPaused(id, false)
	s.publishControl(ctx, id, pubsub.ControlResume)

	return s.jobRepo.UpdatePaused(id, false)
}

// Accept 接受当前结果，worker 跳过剩余迭代直接部署
// 重复接受为幂等操作
func (s *JobService) Accept(ctx context.Context, id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if model.IsTerminal(job.Status) {
		return ErrJobTerminal
	}

	s.registry.Create(id)
	s.registry.SetAccepted(id)
	// 接受隐含恢复，暂停中的任务直接走向部署
	s.registry.SetPaused(id, false)
	s.publishControl(ctx, id, pubsub.ControlAccept)

	if job.AcceptedAt == nil {
		return s.jobRepo.MarkAccepted(id, time.Now())
	}
	return nil
}

// Cancel 取消任务
// 状态立即落为 cancelled，worker 在检查点发现信号后收尾
// 取消优先于接受：两者都置位时任务以取消收场
func (s *JobService) Cancel(ctx context.Context, id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if model.IsTerminal(job.Status) {
		return ErrJobTerminal
	}

	s.registry.Create(id)
	s.registry.SetCancelled(id)
	// 取消也要唤醒暂停等待
	s.registry.SetPaused(id, false)
	s.publishControl(ctx, id, pubsub.ControlCancel)

	return s.jobRepo.Finish(id, model.StatusCancelled, "", elapsedOf(job))
}

// Iterate 追加一轮迭代
// 只有已完成或暂停中且有调研结果的任务可以追加
func (s *JobService) Iterate(ctx context.Context, id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if job.Analysis == nil {
		return ErrIterateNotAllowed
	}

	switch job.Status {
	case model.StatusComplete:
		// 已完成的任务重新入队跑新一轮
		if err := s.jobRepo.Reopen(job.ID); err != nil {
			return err
		}
		s.registry.Create(job.ID)
		return s.queue.Push(ctx, &queue.JobMessage{JobID: job.ID, Slug: job.Slug, Reiterate: true})
	case model.StatusPaused:
		// 暂停中的任务只抬高上限，恢复后多跑一轮
		return s.jobRepo.RaiseCeiling(job.ID)
	default:
		return ErrIterateNotAllowed
	}
}

// Delete 删除任务及其全部产物
// 线上应用、OSS 产物、工作目录的清理失败不阻断删除，只上报告警
func (s *JobService) Delete(ctx context.Context, id int64) (*dto.DeleteJobResponse, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	// 运行中的任务先取消
	if !model.IsTerminal(job.Status) {
		s.registry.SetCancelled(id)
		s.registry.SetPaused(id, false)
		s.publishControl(ctx, id, pubsub.ControlCancel)
	}

	resp := &dto.DeleteJobResponse{Deleted: true}

	if job.Deployment != nil && s.deployer != nil {
		if err := s.deployer.Teardown(ctx, job.Slug); err != nil {
			log.Printf("Job %d: teardown failed: %v", id, err)
			resp.Warnings = append(resp.Warnings, "线上应用下线失败，请手动处理")
		}
	}

	if s.ossClient != nil {
		if err := s.ossClient.DeleteBundles(job.Slug); err != nil {
			log.Printf("Job %d: failed to delete OSS bundles: %v", id, err)
			resp.Warnings = append(resp.Warnings, "产物包清理失败")
		}
	}

	if err := worker.CleanupWorkspace(s.cfg.Pipeline.WorkspaceDir, id, job.Slug); err != nil {
		log.Printf("Job %d: failed to cleanup workspace: %v", id, err)
		resp.Warnings = append(resp.Warnings, "工作目录清理失败")
	}

	if err := s.iterRepo.DeleteByJobID(id); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Delete(id); err != nil {
		return nil, err
	}

	s.registry.Delete(id)
	return resp, nil
}

// publishControl 把控制信号镜像给 worker 进程，发布失败只记日志
func (s *JobService) publishControl(ctx context.Context, id int64, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishControl(ctx, &pubsub.ControlMessage{JobID: id, Action: action}); err != nil {
		log.Printf("Job %d: failed to publish control %s: %v", id, action, err)
	}
}

// makeSlug 生成部署用的唯一标识
// 自定义名优先，后缀短随机串避免同名产品冲突
func makeSlug(customName, targetName string) string {
	base := customName
	if base == "" {
		base = targetName
	}

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "clone"
	}

	return fmt.Sprintf("%s-%s", slug, uuid.NewString()[:8])
}

func elapsedOf(job *model.CloneJob) int {
	if job.StartedAt == nil {
		return 0
	}
	return int(time.Since(*job.StartedAt).Seconds())
}
