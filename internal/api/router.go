package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/api/handler"
	"github.com/qs3c/clone_gen_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	jobHandler       *handler.JobHandler
	modelsHandler    *handler.ModelsHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	jobHandler *handler.JobHandler,
	modelsHandler *handler.ModelsHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		jobHandler:       jobHandler,
		modelsHandler:    modelsHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket（token 走 query，在 handler 内校验）
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/models", r.modelsHandler.List)

			jobs := authenticated.Group("/jobs")
			{
				jobs.POST("", r.jobHandler.Create)
				jobs.GET("", r.jobHandler.List)
				jobs.GET("/:id", r.jobHandler.Get)
				jobs.GET("/:id/iterations", r.jobHandler.Iterations)
				jobs.POST("/:id/pause", r.jobHandler.Pause)
				jobs.POST("/:id/resume", r.jobHandler.Resume)
				jobs.POST("/:id/accept", r.jobHandler.Accept)
				jobs.POST("/:id/cancel", r.jobHandler.Cancel)
				jobs.POST("/:id/iterate", r.jobHandler.Iterate)
				jobs.DELETE("/:id", r.jobHandler.Delete)
			}
		}
	}

	return engine
}
