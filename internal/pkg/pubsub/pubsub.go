package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelCloneProgress = "clone_progress"
	ChannelCloneControl  = "clone_control"
)

// 控制动作，API 进程发布，worker 进程镜像到本地信号注册表
const (
	ControlPause  = "pause"
	ControlResume = "resume"
	ControlAccept = "accept"
	ControlCancel = "cancel"
)

// ControlMessage 控制消息
type ControlMessage struct {
	JobID  int64  `json:"job_id"`
	Action string `json:"action"`
}

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type      string `json:"type"`
	JobID     int64  `json:"job_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage"`
	Iteration int    `json:"iteration,omitempty"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// 流水线阶段常量
const (
	StageResearching     = "researching"
	StageGenerating      = "generating"
	StageTesting         = "testing"
	StageFixing          = "fixing"
	StageVerifying       = "verifying"
	StageDeploying       = "deploying"
	StageVerifyingDeploy = "verifying_deployment"
	StageDone            = "done"
)

// 阶段对应的进度百分比
var StageProgress = map[string]int{
	StageResearching:     10,
	StageGenerating:      30,
	StageTesting:         50,
	StageFixing:          60,
	StageVerifying:       75,
	StageDeploying:       85,
	StageVerifyingDeploy: 95,
	StageDone:            100,
}

// 阶段对应的消息
var StageMessages = map[string]string{
	StageResearching:     "正在调研目标产品",
	StageGenerating:      "正在生成克隆代码",
	StageTesting:         "正在运行测试",
	StageFixing:          "正在修复问题",
	StageVerifying:       "正在评估还原度",
	StageDeploying:       "正在部署",
	StageVerifyingDeploy: "正在验证线上部署",
	StageDone:            "克隆完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Stage != "" {
		if progress, ok := StageProgress[msg.Stage]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Stage != "" {
		if message, ok := StageMessages[msg.Stage]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelCloneProgress, data).Err()
}

// PublishControl 发布控制消息
func (p *Publisher) PublishControl(ctx context.Context, msg *ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}

	return p.client.Publish(ctx, ChannelCloneControl, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelCloneProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}

// SubscribeControl 订阅控制消息
func (s *Subscriber) SubscribeControl(ctx context.Context, handler func(*ControlMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelCloneControl)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var controlMsg ControlMessage
			if err := json.Unmarshal([]byte(msg.Payload), &controlMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&controlMsg)
		}
	}
}
