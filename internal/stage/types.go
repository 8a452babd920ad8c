package stage

import (
	"context"
	"fmt"

	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/scoring"
)

// CollaboratorError 阶段依赖失败
// UserMessage 给用户看，RawError 写日志
type CollaboratorError struct {
	Stage       string
	UserMessage string
	RawError    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.UserMessage)
}

func (e *CollaboratorError) Unwrap() error {
	return e.RawError
}

// Fail 构造阶段失败错误
func Fail(stage, userMessage string, err error) *CollaboratorError {
	return &CollaboratorError{
		Stage:       stage,
		UserMessage: userMessage,
		RawError:    err,
	}
}

// Researcher 调研目标产品，产出分析结果
type Researcher interface {
	Analyze(ctx context.Context, input model.JobInput) (*model.Analysis, error)
}

// Generator 基于分析结果生成克隆代码
type Generator interface {
	Generate(ctx context.Context, analysis *model.Analysis, slug, outputDir string) (*model.Generation, error)
}

// Tester 测试生成产物并修复失败项
// Fix 之后由编排层再跑一次 Run，Tester 内部不做重试
type Tester interface {
	Run(ctx context.Context, outputDir string) (*model.TestResult, error)
	Fix(ctx context.Context, outputDir string, result *model.TestResult) ([]model.Fix, error)
}

// Verifier 部署前还原度评估
type Verifier interface {
	CheckParity(ctx context.Context, analysis *model.Analysis, outputDir string) (*scoring.Report, error)
}

// LiveVerifier 部署后线上验证，全部 best-effort
type LiveVerifier interface {
	CheckDeployment(ctx context.Context, analysis *model.Analysis, appURL string) (*scoring.Report, error)
	CheckDifferentiation(ctx context.Context, analysis *model.Analysis, appURL string) (*scoring.Report, error)
}

// Deployer 部署与下线
type Deployer interface {
	Deploy(ctx context.Context, outputDir, slug string) (*model.Deployment, error)
	Teardown(ctx context.Context, slug string) error
}

// Set 聚合全部阶段协作者，注入编排层
type Set struct {
	Researcher   Researcher
	Generator    Generator
	Tester       Tester
	Verifier     Verifier
	LiveVerifier LiveVerifier
	Deployer     Deployer
}
