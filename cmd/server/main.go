package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/api"
	"github.com/qs3c/clone_gen_server/internal/api/handler"
	"github.com/qs3c/clone_gen_server/internal/database"
	"github.com/qs3c/clone_gen_server/internal/pkg/oss"
	"github.com/qs3c/clone_gen_server/internal/pkg/pubsub"
	"github.com/qs3c/clone_gen_server/internal/pkg/queue"
	"github.com/qs3c/clone_gen_server/internal/pkg/ws"
	"github.com/qs3c/clone_gen_server/internal/registry"
	"github.com/qs3c/clone_gen_server/internal/repository"
	"github.com/qs3c/clone_gen_server/internal/service"
	"github.com/qs3c/clone_gen_server/internal/stage"
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

	// 部署平台客户端（删除任务时用于下线应用）
	var deployer stage.Deployer
	if cfg.Deploy.APIBaseURL != "" {
		deployer = stage.NewHTTPDeployer(&cfg.Deploy, ossClient)
	}

	// 初始化 Queue、Pub/Sub、信号注册表
	jobQueue := queue.NewQueue(rdb, cfg.Queue.CloneQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	reg := registry.New()

	// 初始化 WebSocket Hub，进度消息从 Redis 转发到订阅连接
	wsHub := ws.NewHub()
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.SendToJob(msg.JobID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil && err != context.Canceled {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)
	iterRepo := repository.NewIterationRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(cfg)
	jobService := service.NewJobService(jobRepo, iterRepo, reg, jobQueue, publisher, ossClient, deployer, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	jobHandler := handler.NewJobHandler(jobService)
	modelsHandler := handler.NewModelsHandler(cfg)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		jobHandler,
		modelsHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
