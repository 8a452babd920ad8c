package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/qs3c/clone_gen_server/config"
)

const (
	// DefaultTimeout 单次调用超时，生成整个代码库的调用可能很长
	DefaultTimeout = 5 * time.Minute

	// MaxRetries 限流错误最大重试次数
	MaxRetries = 3

	// BaseBackoff 指数退避基底
	BaseBackoff = 2 * time.Second

	// MaxBackoff 指数退避上限
	MaxBackoff = 32 * time.Second
)

var (
	ErrAPIKeyNotSet = errors.New("LLM API key not set")
)

// Client LLM 客户端，OpenAI 兼容接口
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient 按模型配置创建客户端
// APIProvider 为 URL 时作为兼容网关的 base url
func NewClient(cfg *config.ModelConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.HasPrefix(cfg.APIProvider, "http://") || strings.HasPrefix(cfg.APIProvider, "https://") {
		opts = append(opts, option.WithBaseURL(cfg.APIProvider))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Name,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout 覆盖默认超时
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Complete 普通文本补全
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, system, prompt, false)
}

// CompleteJSON JSON 模式补全，返回内容保证是 JSON 对象
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, system, prompt, true)
}

func (c *Client) complete(ctx context.Context, system, prompt string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
		}

		if jsonMode {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("LLM call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}

		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("LLM call failed after %d retries: %w", MaxRetries, lastErr)
}

// isRateLimitError 判定限流错误
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// ExtractJSON 剥离 markdown 代码块包裹，截取首个 JSON 对象
// 非 JSON 模式下模型偶尔会输出 ```json 包裹
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
