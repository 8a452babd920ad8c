package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
	Email    EmailConfig    `mapstructure:"email"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Models   []ModelConfig  `mapstructure:"models"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql 或 sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AuthConfig 单操作员部署，只有一个管理员账号
type AuthConfig struct {
	AdminUsername     string `mapstructure:"admin_username"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

// DeployConfig 部署平台 API 配置
type DeployConfig struct {
	APIBaseURL     string `mapstructure:"api_base_url"`
	APIToken       string `mapstructure:"api_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	NotifyTo string `mapstructure:"notify_to"` // 任务完成/失败通知收件人
}

type QueueConfig struct {
	CloneQueue string `mapstructure:"clone_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PipelineConfig 克隆流水线参数
type PipelineConfig struct {
	MaxIterations        int    `mapstructure:"max_iterations"`         // 迭代上限
	ParityThreshold      int    `mapstructure:"parity_threshold"`       // 还原度阈值
	DiffThreshold        int    `mapstructure:"diff_threshold"`         // 差异化阈值
	PausePollSeconds     int    `mapstructure:"pause_poll_seconds"`     // 暂停轮询间隔
	WorkspaceDir         string `mapstructure:"workspace_dir"`          // 生成代码工作目录
	WorkspaceExpireHours int    `mapstructure:"workspace_expire_hours"` // 工作目录过期时间
	TestCommand          string `mapstructure:"test_command"`           // 生成产物的测试命令
	TestTimeoutSeconds   int    `mapstructure:"test_timeout_seconds"`
	JobRetainDays        int    `mapstructure:"job_retain_days"` // 终态任务保留天数
}

type ModelConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	APIKey      string `mapstructure:"api_key"`
	APIProvider string `mapstructure:"api_provider"`
	Description string `mapstructure:"description"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充流水线默认参数
func (c *Config) applyDefaults() {
	if c.Pipeline.MaxIterations <= 0 {
		c.Pipeline.MaxIterations = 5
	}
	if c.Pipeline.ParityThreshold <= 0 {
		c.Pipeline.ParityThreshold = 90
	}
	if c.Pipeline.DiffThreshold <= 0 {
		c.Pipeline.DiffThreshold = 60
	}
	if c.Pipeline.PausePollSeconds <= 0 {
		c.Pipeline.PausePollSeconds = 2
	}
	if c.Pipeline.WorkspaceDir == "" {
		c.Pipeline.WorkspaceDir = filepath.Join(os.TempDir(), "clone_workspaces")
	}
	if c.Pipeline.TestTimeoutSeconds <= 0 {
		c.Pipeline.TestTimeoutSeconds = 300
	}
	if c.Queue.CloneQueue == "" {
		c.Queue.CloneQueue = "clone_jobs"
	}
	if c.Queue.MaxWorkers <= 0 {
		c.Queue.MaxWorkers = 2
	}
}

// ActiveModel 返回第一个配置了 API Key 的模型，没有则返回 nil
func (c *Config) ActiveModel() *ModelConfig {
	for i := range c.Models {
		if c.Models[i].APIKey != "" {
			return &c.Models[i]
		}
	}
	return nil
}
