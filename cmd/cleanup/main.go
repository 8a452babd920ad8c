package main

import (
	"flag"
	"log"
	"os"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/database"
	"github.com/qs3c/clone_gen_server/internal/pkg/cron"
	"github.com/qs3c/clone_gen_server/internal/repository"
)

var (
	workspaceExpire = flag.Int("workspace-expire", 0, "Hours to keep job workspaces (0 = use config)")
	jobRetain       = flag.Int("job-retain", 0, "Days to keep terminal jobs (0 = use config)")
)

// 手动触发一次全量清理，平时由 worker 内置的定时器执行
func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	expireHours := cfg.Pipeline.WorkspaceExpireHours
	if *workspaceExpire > 0 {
		expireHours = *workspaceExpire
	}
	retainDays := cfg.Pipeline.JobRetainDays
	if *jobRetain > 0 {
		retainDays = *jobRetain
	}

	jobRepo := repository.NewJobRepository(db)
	iterRepo := repository.NewIterationRepository(db)

	log.Printf("Running cleanup: workspace-expire=%dh, job-retain=%dd", expireHours, retainDays)
	cron.NewService(jobRepo, iterRepo, cfg.Pipeline.WorkspaceDir, expireHours, retainDays).CleanupAll()
	log.Println("Cleanup done")
}
