package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/database"
	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/pkg/cron"
	"github.com/qs3c/clone_gen_server/internal/pkg/email"
	"github.com/qs3c/clone_gen_server/internal/pkg/oss"
	"github.com/qs3c/clone_gen_server/internal/pkg/pubsub"
	"github.com/qs3c/clone_gen_server/internal/pkg/queue"
	"github.com/qs3c/clone_gen_server/internal/registry"
	"github.com/qs3c/clone_gen_server/internal/repository"
	"github.com/qs3c/clone_gen_server/internal/stage"
	"github.com/qs3c/clone_gen_server/internal/stage/llm"
	"github.com/qs3c/clone_gen_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 LLM 客户端，没有可用模型时直接退出
	llmClient, err := llm.NewClient(cfg.ActiveModel())
	if err != nil {
		log.Fatalf("Failed to init LLM client: %v", err)
	}

	// 初始化 Queue、Pub/Sub、信号注册表
	jobQueue := queue.NewQueue(rdb, cfg.Queue.CloneQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	reg := registry.New()

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)
	iterRepo := repository.NewIterationRepository(db)

	// 组装阶段协作者
	var liveVerifier stage.LiveVerifier
	var deployer stage.Deployer
	if cfg.Deploy.APIBaseURL != "" {
		deployer = stage.NewHTTPDeployer(&cfg.Deploy, ossClient)
		liveVerifier = stage.NewHTTPLiveVerifier(cfg.Pipeline.ParityThreshold, cfg.Pipeline.DiffThreshold)
	} else {
		log.Fatalf("deploy.api_base_url is required for the worker")
	}

	stages := stage.Set{
		Researcher:   stage.NewLLMResearcher(llmClient),
		Generator:    stage.NewLLMGenerator(llmClient),
		Tester:       stage.NewExecTester(cfg.Pipeline.TestCommand, cfg.Pipeline.TestTimeoutSeconds, llmClient),
		Verifier:     stage.NewHeuristicVerifier(cfg.Pipeline.ParityThreshold),
		LiveVerifier: liveVerifier,
		Deployer:     deployer,
	}

	emailSvc := email.NewService(&cfg.Email)
	orchestrator := worker.NewOrchestrator(jobRepo, iterRepo, reg, publisher, emailSvc, stages, cfg)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// 控制信号镜像：API 进程发布的控制消息落到本地注册表
	go func() {
		err := subscriber.SubscribeControl(ctx, func(msg *pubsub.ControlMessage) {
			switch msg.Action {
			case pubsub.ControlPause:
				reg.Create(msg.JobID)
				reg.SetPaused(msg.JobID, true)
			case pubsub.ControlResume:
				reg.SetPaused(msg.JobID, false)
			case pubsub.ControlAccept:
				reg.Create(msg.JobID)
				reg.SetAccepted(msg.JobID)
				reg.SetPaused(msg.JobID, false)
			case pubsub.ControlCancel:
				reg.Create(msg.JobID)
				reg.SetCancelled(msg.JobID)
				reg.SetPaused(msg.JobID, false)
			}
		})
		if err != nil && err != context.Canceled {
			log.Printf("Control subscriber stopped: %v", err)
		}
	}()

	// 重启恢复：上次停机时跑到一半的任务重新入队
	// pending 任务的消息还在队列里，不重复入队
	if active, err := jobRepo.ListActive(); err != nil {
		log.Printf("Failed to list active jobs for recovery: %v", err)
	} else {
		for _, job := range active {
			if job.Status == model.StatusPending {
				continue
			}
			if err := jobQueue.Push(ctx, &queue.JobMessage{JobID: job.ID, Slug: job.Slug}); err != nil {
				log.Printf("Failed to re-enqueue job %d: %v", job.ID, err)
				continue
			}
			log.Printf("Re-enqueued interrupted job %d (%s)", job.ID, job.Status)
		}
	}

	// 定时清理过期工作目录和终态任务
	cronSvc := cron.NewService(jobRepo, iterRepo,
		cfg.Pipeline.WorkspaceDir, cfg.Pipeline.WorkspaceExpireHours, cfg.Pipeline.JobRetainDays)
	cronSvc.Start()
	defer cronSvc.Stop()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: running job %d (%s)", workerID, msg.JobID, msg.Slug)
					if err := orchestrator.Run(ctx, msg); err != nil {
						log.Printf("Worker %d: job %d failed: %v", workerID, msg.JobID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
