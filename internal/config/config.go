package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHolehePath      = "holehe"
	DefaultTimeoutSeconds  = 120
	DefaultMaxOutputBytes  = 1 << 20
	DefaultHealthCron      = "*/10 * * * *"
	DefaultAssessMaxTokens = 400
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type TelegramApp struct {
	ApiId   int32  `yaml:"ApiId"`
	ApiHash string `yaml:"ApiHash"`
	DataDir string `yaml:"DataDir"` // TDLib 数据目录，默认 data
}

type Holehe struct {
	Path           string   `yaml:"Path"`           // holehe 可执行文件路径
	Args           []string `yaml:"Args"`           // 附加参数，放在邮箱之前，如 --no-color
	TimeoutSeconds int      `yaml:"TimeoutSeconds"` // 单次执行超时（秒）
	MaxOutputBytes int      `yaml:"MaxOutputBytes"` // stdout/stderr 各自的缓冲上限
	MaxConcurrent  int64    `yaml:"MaxConcurrent"`  // 同时运行的进程数上限，0 表示不限制
}

// Timeout 返回执行超时时间
func (h Holehe) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

type LLM struct {
	Enable    bool   `yaml:"Enable"`
	BaseURL   string `yaml:"BaseURL"` // 兼容 OpenAI API 的端点
	APIKey    string `yaml:"APIKey"`
	Model     string `yaml:"Model"`
	MaxTokens int    `yaml:"MaxTokens"` // 风险评估输出的最大 token 数
}

type Health struct {
	Cron string `yaml:"Cron"` // 健康检查 cron 表达式
}

type Metrics struct {
	ListenAddr string `yaml:"ListenAddr"` // 为空则不启动指标服务
}

type Log struct {
	Level string `yaml:"Level"` // debug / info / warn / error
}

type Config struct {
	Sock5Proxy  Sock5Proxy  `yaml:"Sock5Proxy"`
	TelegramApp TelegramApp `yaml:"TelegramApp"`
	Holehe      Holehe      `yaml:"Holehe"`
	LLM         LLM         `yaml:"LLM"`
	Health      Health      `yaml:"Health"`
	Metrics     Metrics     `yaml:"Metrics"`
	Log         Log         `yaml:"Log"`
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Load 解析 YAML 配置内容，补全默认值并验证
func Load(data []byte) (*Config, error) {
	var c Config
	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}

	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.TelegramApp.DataDir == "" {
		c.TelegramApp.DataDir = "data"
	}
	if c.Holehe.Path == "" {
		c.Holehe.Path = DefaultHolehePath
	}
	if c.Holehe.TimeoutSeconds == 0 {
		c.Holehe.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Holehe.MaxOutputBytes == 0 {
		c.Holehe.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.Health.Cron == "" {
		c.Health.Cron = DefaultHealthCron
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultAssessMaxTokens
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 TelegramApp
	if c.TelegramApp.ApiId == 0 {
		return fmt.Errorf("TelegramApp.ApiId 不能为空")
	}
	if c.TelegramApp.ApiHash == "" {
		return fmt.Errorf("TelegramApp.ApiHash 不能为空")
	}

	// 验证 Holehe
	if c.Holehe.TimeoutSeconds < 0 {
		return fmt.Errorf("Holehe.TimeoutSeconds 必须 >= 0")
	}
	if c.Holehe.MaxOutputBytes < 0 {
		return fmt.Errorf("Holehe.MaxOutputBytes 必须 >= 0")
	}
	if c.Holehe.MaxConcurrent < 0 {
		return fmt.Errorf("Holehe.MaxConcurrent 必须 >= 0")
	}

	// 验证 LLM（仅在启用时）
	if c.LLM.Enable {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM.APIKey 不能为空")
		}
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("LLM.BaseURL 不能为空")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("LLM.Model 不能为空")
		}
		if c.LLM.MaxTokens <= 0 {
			return fmt.Errorf("LLM.MaxTokens 必须大于 0")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("Log.Level 必须是 'debug', 'info', 'warn' 或 'error'")
	}

	return nil
}
