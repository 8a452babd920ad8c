package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/stage/llm"
)

const generatorSystem = `You are a full-stack engineer. Generate a complete runnable web ` +
	`application that reproduces the described product. Respond with a JSON object: ` +
	`{"files": [{"path": string, "content": string}]}. Paths are relative, no parent ` +
	`references. Include a package.json (or index.html for static apps) at the root.`

// generatedFile LLM 返回的单个文件
type generatedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// LLMGenerator 生成协作者，调 LLM 产出克隆代码并落盘
type LLMGenerator struct {
	llm *llm.Client
}

func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{llm: client}
}

func (g *LLMGenerator) Generate(ctx context.Context, analysis *model.Analysis, slug, outputDir string) (*model.Generation, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, Fail("generate", "分析结果序列化失败", err)
	}

	prompt := fmt.Sprintf("App slug: %s\nProduct analysis:\n%s", slug, analysisJSON)

	content, err := g.llm.CompleteJSON(ctx, generatorSystem, prompt)
	if err != nil {
		return nil, Fail("generate", "代码生成失败", err)
	}

	var payload struct {
		Files []generatedFile `json:"files"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &payload); err != nil {
		return nil, Fail("generate", "生成结果格式异常", err)
	}
	if len(payload.Files) == 0 {
		return nil, Fail("generate", "生成结果为空", nil)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, Fail("generate", "创建输出目录失败", err)
	}

	gen := &model.Generation{OutputDir: outputDir}
	for _, file := range payload.Files {
		if err := writeGeneratedFile(outputDir, file); err != nil {
			gen.Errors = append(gen.Errors, err.Error())
			continue
		}
		gen.FileList = append(gen.FileList, file.Path)
	}
	gen.FileCount = len(gen.FileList)

	if gen.FileCount == 0 {
		return nil, Fail("generate", "生成的文件全部写入失败", nil)
	}

	return gen, nil
}

// writeGeneratedFile 写入单个生成文件，拒绝逃逸输出目录的路径
func writeGeneratedFile(outputDir string, file generatedFile) error {
	cleaned := filepath.Clean(file.Path)
	if cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return fmt.Errorf("unsafe file path: %s", file.Path)
	}

	fullPath := filepath.Join(outputDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", cleaned, err)
	}
	if err := os.WriteFile(fullPath, []byte(file.Content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", cleaned, err)
	}
	return nil
}
