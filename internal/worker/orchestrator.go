package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/pkg/email"
	"github.com/qs3c/clone_gen_server/internal/pkg/pubsub"
	"github.com/qs3c/clone_gen_server/internal/pkg/queue"
	"github.com/qs3c/clone_gen_server/internal/registry"
	"github.com/qs3c/clone_gen_server/internal/repository"
	"github.com/qs3c/clone_gen_server/internal/stage"
)

// errCancelled 检查点发现取消信号后沿调用栈展开
var errCancelled = errors.New("job cancelled")

// maxMissingFeatures 迭代历史里缺失特征最多记录条数
const maxMissingFeatures = 5

// Orchestrator 克隆流水线编排器
// 状态转换只在这里发生，API 层只置控制信号
// 控制信号在阶段之间的检查点生效，不打断正在执行的阶段
type Orchestrator struct {
	jobRepo   *repository.JobRepository
	iterRepo  *repository.IterationRepository
	registry  *registry.Registry
	publisher *pubsub.Publisher
	email     *email.Service
	stages    stage.Set
	cfg       *config.Config
}

func NewOrchestrator(
	jobRepo *repository.JobRepository,
	iterRepo *repository.IterationRepository,
	reg *registry.Registry,
	publisher *pubsub.Publisher,
	emailSvc *email.Service,
	stages stage.Set,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		jobRepo:   jobRepo,
		iterRepo:  iterRepo,
		registry:  reg,
		publisher: publisher,
		email:     emailSvc,
		stages:    stages,
		cfg:       cfg,
	}
}

// Run 执行一个克隆任务直到终态
// 已有调研结果的任务跳过调研阶段，追加迭代的重新入队走这条路径
func (o *Orchestrator) Run(ctx context.Context, msg *queue.JobMessage) (err error) {
	job, err := o.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job %d: %w", msg.JobID, err)
	}
	if model.IsTerminal(job.Status) {
		log.Printf("Job %d: already %s, skipping", job.ID, job.Status)
		return nil
	}

	o.registry.Create(job.ID)
	// 重启恢复的任务注册表是空的，用暂停列回灌信号
	if job.Paused {
		o.registry.SetPaused(job.ID, true)
	}

	// 阶段实现 panic 不能带倒整个 worker
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Job %d: panic: %v", job.ID, r)
			o.markFailed(ctx, job, stage.Fail("pipeline", "任务执行异常中断", fmt.Errorf("panic: %v", r)))
			err = fmt.Errorf("job %d panicked: %v", job.ID, r)
		}
	}()

	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}

	if err := o.research(ctx, job); err != nil {
		return o.unwind(ctx, job, err)
	}

	if err := o.iterate(ctx, job); err != nil {
		return o.unwind(ctx, job, err)
	}

	if err := o.deploy(ctx, job); err != nil {
		return o.unwind(ctx, job, err)
	}

	o.verifyDeployment(ctx, job)
	o.complete(ctx, job)
	return nil
}

// research 调研阶段，整个任务周期只执行一次
func (o *Orchestrator) research(ctx context.Context, job *model.CloneJob) error {
	if job.Analysis != nil {
		return nil
	}

	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	log.Printf("Job %d: researching target %s", job.ID, job.Input.TargetName)
	o.setStage(ctx, job, model.StatusResearching, pubsub.StageResearching)

	analysis, err := o.stages.Researcher.Analyze(ctx, job.Input)
	if err != nil {
		return err
	}

	job.Analysis = analysis
	return o.jobRepo.UpdateArtifacts(job)
}

// iterate 生成-测试-修复-评估循环
// 计数先于本轮工作递增，被中断的一轮不产生迭代历史
func (o *Orchestrator) iterate(ctx context.Context, job *model.CloneJob) error {
	for job.IterationCount < job.MaxIterations {
		if err := o.checkpoint(ctx, job); err != nil {
			return err
		}

		// 操作员接受当前结果，提前出循环去部署
		// 一轮都没跑完时还没有产物，接受信号等到首轮完成后生效
		if sig, ok := o.registry.Get(job.ID); ok && sig.Accepted && job.Generation != nil {
			log.Printf("Job %d: accepted at iteration %d", job.ID, job.IterationCount)
			return nil
		}

		job.IterationCount++
		version := job.IterationCount
		if err := o.jobRepo.UpdateArtifacts(job); err != nil {
			return err
		}

		// 生成
		status := model.StatusGenerating
		if version > 1 {
			status = model.StatusIterating
		}
		log.Printf("Job %d: generating iteration %d/%d", job.ID, version, job.MaxIterations)
		o.setStage(ctx, job, status, pubsub.StageGenerating)

		outputDir := IterationDir(o.cfg.Pipeline.WorkspaceDir, job.ID, job.Slug, version)
		gen, err := o.stages.Generator.Generate(ctx, job.Analysis, job.Slug, outputDir)
		if err != nil {
			return err
		}
		job.Generation = gen
		if err := o.jobRepo.UpdateArtifacts(job); err != nil {
			return err
		}

		if err := o.checkpoint(ctx, job); err != nil {
			return err
		}

		// 测试与修复
		log.Printf("Job %d: testing %d files", job.ID, gen.FileCount)
		o.setStage(ctx, job, model.StatusTesting, pubsub.StageTesting)

		result, err := o.stages.Tester.Run(ctx, outputDir)
		if err != nil {
			return err
		}
		job.Tests = result

		fixesApplied := 0
		if !result.Passed {
			if err := o.checkpoint(ctx, job); err != nil {
				return err
			}

			log.Printf("Job %d: fixing %d failed checks", job.ID, len(result.FailedChecks))
			o.setStage(ctx, job, model.StatusFixing, pubsub.StageFixing)

			fixes, err := o.stages.Tester.Fix(ctx, outputDir, result)
			if err != nil {
				return err
			}
			if len(fixes) > 0 {
				fixesApplied = len(fixes)
				job.Fixes = append(job.Fixes, fixes...)

				// 修复后复测一次，结果覆盖本轮测试记录
				if retest, err := o.stages.Tester.Run(ctx, outputDir); err == nil {
					job.Tests = retest
				}
			}
		}
		if err := o.jobRepo.UpdateArtifacts(job); err != nil {
			return err
		}

		if err := o.checkpoint(ctx, job); err != nil {
			return err
		}

		// 还原度评估
		log.Printf("Job %d: verifying parity", job.ID)
		o.setStage(ctx, job, model.StatusVerifying, pubsub.StageVerifying)

		report, err := o.stages.Verifier.CheckParity(ctx, job.Analysis, outputDir)
		if err != nil {
			return err
		}
		job.Parity = report
		if err := o.jobRepo.UpdateArtifacts(job); err != nil {
			return err
		}

		// 本轮完整跑完，追加迭代历史
		missing := report.MissingFeatures
		if len(missing) > maxMissingFeatures {
			missing = missing[:maxMissingFeatures]
		}
		rec := &model.IterationRecord{
			JobID:           job.ID,
			Version:         version,
			ParityScore:     report.Overall,
			FileCount:       gen.FileCount,
			TestsPassed:     job.Tests.Passed,
			FixesApplied:    fixesApplied,
			MissingFeatures: missing,
			CompletedAt:     time.Now(),
		}
		if err := o.iterRepo.Create(rec); err != nil {
			log.Printf("Job %d: failed to record iteration %d: %v", job.ID, version, err)
		}

		o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			JobID:     job.ID,
			Status:    job.Status,
			Stage:     pubsub.StageVerifying,
			Iteration: version,
			Message:   fmt.Sprintf("第 %d 轮完成，还原度 %d%%", version, report.Overall),
		})

		log.Printf("Job %d: iteration %d parity=%d threshold=%d",
			job.ID, version, report.Overall, report.Threshold)

		if report.PassesThreshold {
			return nil
		}
	}

	// 迭代上限用尽，带着当前产物去部署
	log.Printf("Job %d: iteration ceiling reached (%d)", job.ID, job.MaxIterations)
	return nil
}

// deploy 部署阶段
func (o *Orchestrator) deploy(ctx context.Context, job *model.CloneJob) error {
	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	if job.Generation == nil {
		return stage.Fail("deploy", "没有可部署的产物", nil)
	}

	log.Printf("Job %d: deploying %s", job.ID, job.Slug)
	o.setStage(ctx, job, model.StatusDeploying, pubsub.StageDeploying)

	outputDir := job.Generation.OutputDir
	deployment, err := o.stages.Deployer.Deploy(ctx, outputDir, job.Slug)
	if err != nil {
		return err
	}

	job.Deployment = deployment
	return o.jobRepo.UpdateArtifacts(job)
}

// verifyDeployment 部署后线上验证
// best-effort：失败只记日志，不改变任务结局
func (o *Orchestrator) verifyDeployment(ctx context.Context, job *model.CloneJob) {
	if o.stages.LiveVerifier == nil || job.Deployment == nil {
		return
	}

	o.setStage(ctx, job, model.StatusDeploying, pubsub.StageVerifyingDeploy)

	if report, err := o.stages.LiveVerifier.CheckDeployment(ctx, job.Analysis, job.Deployment.AppURL); err != nil {
		log.Printf("Job %d: deployment check failed: %v", job.ID, err)
	} else {
		log.Printf("Job %d: deployment check overall=%d passes=%v",
			job.ID, report.Overall, report.PassesThreshold)
	}

	if report, err := o.stages.LiveVerifier.CheckDifferentiation(ctx, job.Analysis, job.Deployment.AppURL); err != nil {
		log.Printf("Job %d: differentiation check failed: %v", job.ID, err)
	} else {
		job.Differentiation = report
		if !report.PassesThreshold {
			log.Printf("Job %d: differentiation score %d below threshold %d",
				job.ID, report.Overall, report.Threshold)
		}
		if err := o.jobRepo.UpdateArtifacts(job); err != nil {
			log.Printf("Job %d: failed to save differentiation report: %v", job.ID, err)
		}
	}
}

// complete 收尾：写终态、推送、通知、回收控制条目
func (o *Orchestrator) complete(ctx context.Context, job *model.CloneJob) {
	job.Status = model.StatusComplete
	job.CurrentStage = pubsub.StageDone
	job.Progress = 100
	if err := o.jobRepo.Complete(job.ID, pubsub.StageDone, o.elapsed(job)); err != nil {
		log.Printf("Job %d: failed to finish: %v", job.ID, err)
	}

	o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		JobID:     job.ID,
		Status:    model.StatusComplete,
		Stage:     pubsub.StageDone,
		Iteration: job.IterationCount,
	})

	parity := 0
	if job.Parity != nil {
		parity = job.Parity.Overall
	}
	appURL := ""
	if job.Deployment != nil {
		appURL = job.Deployment.AppURL
	}
	if err := o.email.SendJobComplete(job.ID, job.Input.TargetName, parity, appURL); err != nil {
		log.Printf("Job %d: failed to send completion email: %v", job.ID, err)
	}

	o.registry.Delete(job.ID)

	log.Printf("Job %d: completed in %d seconds, %d iterations, parity=%d",
		job.ID, o.elapsed(job), job.IterationCount, parity)
}

// unwind 把阶段错误或取消信号落成对应终态
func (o *Orchestrator) unwind(ctx context.Context, job *model.CloneJob, err error) error {
	if errors.Is(err, errCancelled) {
		o.markCancelled(ctx, job)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		// worker 停机，任务留在当前状态等待恢复
		log.Printf("Job %d: interrupted by shutdown at %s", job.ID, job.CurrentStage)
		return err
	}
	o.markFailed(ctx, job, err)
	return err
}

func (o *Orchestrator) markCancelled(ctx context.Context, job *model.CloneJob) {
	if err := o.jobRepo.Finish(job.ID, model.StatusCancelled, "", o.elapsed(job)); err != nil {
		log.Printf("Job %d: failed to mark cancelled: %v", job.ID, err)
	}

	o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		JobID:   job.ID,
		Status:  model.StatusCancelled,
		Message: "任务已取消",
	})

	o.registry.Delete(job.ID)
	log.Printf("Job %d: cancelled at %s", job.ID, job.CurrentStage)
}

func (o *Orchestrator) markFailed(ctx context.Context, job *model.CloneJob, err error) {
	userMsg := "任务执行失败，请稍后重试"
	var ce *stage.CollaboratorError
	if errors.As(err, &ce) {
		userMsg = ce.UserMessage
		log.Printf("Job %d: stage %s failed: %v", job.ID, ce.Stage, ce.RawError)
	} else {
		log.Printf("Job %d: failed: %v", job.ID, err)
	}

	if err := o.jobRepo.Finish(job.ID, model.StatusFailed, userMsg, o.elapsed(job)); err != nil {
		log.Printf("Job %d: failed to mark failed: %v", job.ID, err)
	}

	o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		JobID:  job.ID,
		Status: model.StatusFailed,
		Stage:  job.CurrentStage,
		Error:  userMsg,
	})

	if err := o.email.SendJobFailed(job.ID, job.Input.TargetName, userMsg); err != nil {
		log.Printf("Job %d: failed to send failure email: %v", job.ID, err)
	}

	o.registry.Delete(job.ID)
}

// checkpoint 阶段边界的控制信号检查
// 取消返回 errCancelled；暂停在此阻塞直到恢复、取消或停机
// 条目缺失说明任务已被删除，按取消处理
func (o *Orchestrator) checkpoint(ctx context.Context, job *model.CloneJob) error {
	pausedLogged := false
	poll := time.Duration(o.cfg.Pipeline.PausePollSeconds) * time.Second

	for {
		sig, ok := o.registry.Get(job.ID)
		if !ok {
			return errCancelled
		}
		if sig.Cancelled {
			return errCancelled
		}
		if !sig.Paused {
			if pausedLogged {
				// 暂停期间可能被追加迭代，恢复时重读上限
				if fresh, err := o.jobRepo.GetByID(job.ID); err == nil {
					job.MaxIterations = fresh.MaxIterations
				}
			}
			return nil
		}

		if !pausedLogged {
			pausedLogged = true
			log.Printf("Job %d: paused at %s", job.ID, job.CurrentStage)
			if err := o.jobRepo.UpdateStatus(job.ID, model.StatusPaused); err != nil {
				log.Printf("Job %d: failed to persist paused status: %v", job.ID, err)
			}
			o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
				JobID:   job.ID,
				Status:  model.StatusPaused,
				Stage:   job.CurrentStage,
				Message: "任务已暂停",
			})
		}

		// 信号变更立即唤醒，轮询只是兜底
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.registry.Changed(job.ID):
		case <-time.After(poll):
		}
	}
}

// setStage 写状态与进度快照并广播
func (o *Orchestrator) setStage(ctx context.Context, job *model.CloneJob, status, stageName string) {
	job.Status = status
	job.CurrentStage = stageName
	job.Progress = pubsub.StageProgress[stageName]

	if err := o.jobRepo.UpdateStage(job.ID, status, stageName, job.Progress); err != nil {
		log.Printf("Job %d: failed to update stage: %v", job.ID, err)
	}

	o.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		JobID:     job.ID,
		Status:    status,
		Stage:     stageName,
		Iteration: job.IterationCount,
	})
}

func (o *Orchestrator) elapsed(job *model.CloneJob) int {
	if job.StartedAt == nil {
		return 0
	}
	return int(time.Since(*job.StartedAt).Seconds())
}
