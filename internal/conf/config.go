package conf

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iceymoss/go-feed/pkg/db/objects"

	"github.com/spf13/viper"
)

// PathEnv 覆盖默认配置文件路径
const PathEnv = "FEED_CONFIG"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Exa      ExaConfig      `mapstructure:"exa"`
	LLM      LLMConfig      `mapstructure:"llm"`
	RSS      RSSConfig      `mapstructure:"rss"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Jobs     []JobConfig    `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig driver 支持 mysql / postgres / sqlite
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	LogLevel     string        `mapstructure:"logLevel"`
	MaxOpenConns int           `mapstructure:"maxOpenConns"`
	MaxIdleConns int           `mapstructure:"maxIdleConns"`
	SlowQuery    time.Duration `mapstructure:"slowQuery"`
}

// RedisConfig Addr 为空时异步任务状态保存在内存里
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	RunTTL   time.Duration `mapstructure:"runTTL"`
}

type ExaConfig struct {
	APIKey        string        `mapstructure:"apiKey"`
	BaseURL       string        `mapstructure:"baseURL"`
	SearchType    string        `mapstructure:"searchType"`
	NumResults    int           `mapstructure:"numResults"`
	MaxCharacters int           `mapstructure:"maxCharacters"`
	QueryTemplate string        `mapstructure:"queryTemplate"`
	Livecrawl     string        `mapstructure:"livecrawl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	APIKey        string  `mapstructure:"apiKey"`
	BaseURL       string  `mapstructure:"baseURL"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"maxTokens"`
	MaxInputChars int     `mapstructure:"maxInputChars"`
}

// RSSConfig 额外的 discovery 源, feeds 为空时只用 exa
type RSSConfig struct {
	Feeds   []string      `mapstructure:"feeds"`
	MaxAge  time.Duration `mapstructure:"maxAge"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	InterStageDelay  time.Duration `mapstructure:"interStageDelay"`
	RetryAttempts    int           `mapstructure:"retryAttempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retryBaseDelay"`
	SummarizeTimeout time.Duration `mapstructure:"summarizeTimeout"`
	MinContentLength int           `mapstructure:"minContentLength"`
	BacklogLimit     int           `mapstructure:"backlogLimit"`
	OnDemandQuota    int           `mapstructure:"onDemandQuota"`
	BlockedWords     []string      `mapstructure:"blockedWords"`
	BlockedWordsFile string        `mapstructure:"blockedWordsFile"`
	FetchPages       bool          `mapstructure:"fetchPages"`
	PageMaxChars     int           `mapstructure:"pageMaxChars"`
	RunTimeout       time.Duration `mapstructure:"runTimeout"`
}

// ScheduleConfig 定时批量任务: topics x categories
type ScheduleConfig struct {
	Enable     bool     `mapstructure:"enable"`
	Cron       string   `mapstructure:"cron"`
	Topics     []string `mapstructure:"topics"`
	Categories []string `mapstructure:"categories"`
}

type JobConfig struct {
	Name   string                 `mapstructure:"name"`
	Cron   string                 `mapstructure:"cron"`
	Enable bool                   `mapstructure:"enable"`
	Params map[string]interface{} `mapstructure:"params"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "feed.db")
	v.SetDefault("database.logLevel", "warning")
	v.SetDefault("database.maxOpenConns", 30)
	v.SetDefault("database.maxIdleConns", 15)
	v.SetDefault("database.slowQuery", 500*time.Millisecond)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.runTTL", 24*time.Hour)

	v.SetDefault("exa.apiKey", "")
	v.SetDefault("exa.baseURL", "https://api.exa.ai")
	v.SetDefault("exa.searchType", "neural")
	v.SetDefault("exa.numResults", 10)
	v.SetDefault("exa.maxCharacters", 5000)
	v.SetDefault("exa.queryTemplate", "new niche prominent interesting %s %s analysis")
	v.SetDefault("exa.livecrawl", "always")
	v.SetDefault("exa.timeout", 30*time.Second)

	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.maxTokens", 600)
	v.SetDefault("llm.maxInputChars", 20000)

	v.SetDefault("rss.maxAge", 72*time.Hour)
	v.SetDefault("rss.timeout", 20*time.Second)

	v.SetDefault("pipeline.interStageDelay", 200*time.Millisecond)
	v.SetDefault("pipeline.retryAttempts", 3)
	v.SetDefault("pipeline.retryBaseDelay", 2*time.Second)
	v.SetDefault("pipeline.summarizeTimeout", 60*time.Second)
	v.SetDefault("pipeline.minContentLength", 100)
	v.SetDefault("pipeline.backlogLimit", 10)
	v.SetDefault("pipeline.onDemandQuota", 4)
	v.SetDefault("pipeline.fetchPages", true)
	v.SetDefault("pipeline.pageMaxChars", 20000)
	v.SetDefault("pipeline.runTimeout", 30*time.Minute)

	v.SetDefault("schedule.enable", true)
	v.SetDefault("schedule.cron", "0 0 */6 * * *")
	v.SetDefault("schedule.topics", []string{"cybersecurity", "artificial intelligence"})
	v.SetDefault("schedule.categories", []string{"news", "research"})
}

// LoadConfig 加载配置, path 为空时只使用默认值 + 环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // 自动读取环境变量, 例如 FEED_EXA_APIKEY

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// 显式展开环境变量, 允许 YAML 里写 ${VAR}
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 启动前检查明显错误的配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Pipeline.RetryAttempts <= 0 {
		return fmt.Errorf("config: pipeline.retryAttempts must be positive, got %d", c.Pipeline.RetryAttempts)
	}
	if c.Pipeline.OnDemandQuota <= 0 {
		return fmt.Errorf("config: pipeline.onDemandQuota must be positive, got %d", c.Pipeline.OnDemandQuota)
	}
	if c.Schedule.Enable && c.Schedule.Cron == "" {
		return fmt.Errorf("config: schedule.cron is required when schedule is enabled")
	}
	for _, v := range append(append([]string{}, c.Schedule.Topics...), c.Schedule.Categories...) {
		if utf8.RuneCountInString(v) > objects.MaxDimensionLength {
			return fmt.Errorf("config: schedule topic or category %q exceeds %d characters", v, objects.MaxDimensionLength)
		}
	}
	return nil
}
