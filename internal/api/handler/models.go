package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/pkg/response"
)

type ModelsHandler struct {
	cfg *config.Config
}

func NewModelsHandler(cfg *config.Config) *ModelsHandler {
	return &ModelsHandler{cfg: cfg}
}

type modelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
}

// List 可用模型列表，不暴露 API Key
// GET /api/v1/models
func (h *ModelsHandler) List(c *gin.Context) {
	models := make([]modelInfo, 0, len(h.cfg.Models))
	for _, m := range h.cfg.Models {
		models = append(models, modelInfo{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Description: m.Description,
			Available:   m.APIKey != "",
		})
	}

	response.Success(c, gin.H{"models": models})
}
