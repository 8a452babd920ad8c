package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/stage/llm"
)

const researcherSystem = `You are a product researcher. Given the name of a SaaS product, ` +
	`describe it for an engineering team that will rebuild it. Respond with a JSON object: ` +
	`{"summary": string, "features": [string], "pages": [string], "tech_stack": [string], "design_notes": string}. ` +
	`Feature names use lower_snake_case (e.g. landing_page, auth, crud, api_integration, search, loading_state).`

// LLMResearcher 调研协作者，调 LLM 产出目标产品分析
type LLMResearcher struct {
	llm *llm.Client
}

func NewLLMResearcher(client *llm.Client) *LLMResearcher {
	return &LLMResearcher{llm: client}
}

func (r *LLMResearcher) Analyze(ctx context.Context, input model.JobInput) (*model.Analysis, error) {
	prompt := fmt.Sprintf("Target product: %s", input.TargetName)
	if input.SourceURL != "" {
		prompt += fmt.Sprintf("\nProduct URL: %s", input.SourceURL)
	}
	if input.Description != "" {
		prompt += fmt.Sprintf("\nOperator notes: %s", input.Description)
	}

	content, err := r.llm.CompleteJSON(ctx, researcherSystem, prompt)
	if err != nil {
		return nil, Fail("research", "目标产品调研失败", err)
	}

	var analysis model.Analysis
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &analysis); err != nil {
		return nil, Fail("research", "调研结果格式异常", err)
	}

	// 没有特征清单则后续生成和评分都无从谈起
	if len(analysis.Features) == 0 {
		return nil, Fail("research", "调研结果缺少特征清单", nil)
	}

	analysis.TargetName = input.TargetName
	return &analysis, nil
}
