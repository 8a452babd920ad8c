package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/stage/llm"
)

const (
	// maxTestOutput 测试输出截断上限，避免把整个日志塞进任务记录
	maxTestOutput = 8 * 1024
)

const fixerSystem = `You are a debugging engineer. Given failing checks and test output for a ` +
	`generated web application, produce corrected files. Respond with a JSON object: ` +
	`{"files": [{"path": string, "content": string, "description": string}]}. Only include ` +
	`files that need changes.`

// ExecTester 测试协作者：结构检查 + 可配置的测试命令，修复走 LLM
type ExecTester struct {
	command string
	timeout time.Duration
	llm     *llm.Client
}

func NewExecTester(command string, timeoutSeconds int, client *llm.Client) *ExecTester {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}
	return &ExecTester{
		command: command,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		llm:     client,
	}
}

// Run 运行结构检查和测试命令
// 检查失败不是 error，error 只表示测试器本身无法工作
func (t *ExecTester) Run(ctx context.Context, outputDir string) (*model.TestResult, error) {
	result := &model.TestResult{Passed: true}

	// 结构检查：产物目录必须存在且有入口文件
	if _, err := os.Stat(outputDir); err != nil {
		return nil, Fail("test", "产物目录不存在", err)
	}

	hasEntry := false
	for _, entry := range []string{"package.json", "index.html"} {
		if _, err := os.Stat(filepath.Join(outputDir, entry)); err == nil {
			hasEntry = true
			break
		}
	}
	if !hasEntry {
		result.Passed = false
		result.FailedChecks = append(result.FailedChecks, "missing entry file (package.json or index.html)")
	}

	// 测试命令为空或全空白时只做结构检查
	if parts := strings.Fields(t.command); len(parts) > 0 {
		cmdCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		cmd := exec.CommandContext(cmdCtx, parts[0], parts[1:]...)
		cmd.Dir = outputDir

		output, err := cmd.CombinedOutput()
		result.Output = truncate(string(output), maxTestOutput)
		if err != nil {
			result.Passed = false
			result.FailedChecks = append(result.FailedChecks, fmt.Sprintf("test command failed: %v", err))
		}
	}

	return result, nil
}

// Fix 把失败信息交给 LLM 产出修复文件，返回修复清单
// 没有配置 LLM 时返回空清单，让编排层按原结果继续
func (t *ExecTester) Fix(ctx context.Context, outputDir string, result *model.TestResult) ([]model.Fix, error) {
	if t.llm == nil {
		return nil, nil
	}

	prompt := fmt.Sprintf("Failed checks:\n%s\n\nTest output:\n%s",
		strings.Join(result.FailedChecks, "\n"), result.Output)

	content, err := t.llm.CompleteJSON(ctx, fixerSystem, prompt)
	if err != nil {
		return nil, Fail("fix", "自动修复失败", err)
	}

	var payload struct {
		Files []struct {
			Path        string `json:"path"`
			Content     string `json:"content"`
			Description string `json:"description"`
		} `json:"files"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &payload); err != nil {
		// 修复结果解析失败按"没有修复"处理，不让任务直接失败
		return nil, nil
	}

	var fixes []model.Fix
	for _, file := range payload.Files {
		gf := generatedFile{Path: file.Path, Content: file.Content}
		if err := writeGeneratedFile(outputDir, gf); err != nil {
			continue
		}
		desc := file.Description
		if desc == "" {
			desc = "rewritten"
		}
		fixes = append(fixes, model.Fix{File: file.Path, Description: desc})
	}

	return fixes, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
