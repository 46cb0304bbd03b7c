package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Board     BoardConfig     `yaml:"board"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// BoardConfig 描述留言板接口行为。
type BoardConfig struct {
	PrincipalHeader string `yaml:"principalHeader"`
	DefaultPageSize uint32 `yaml:"defaultPageSize"`
	MaxPageSize     uint32 `yaml:"maxPageSize"`
	FeedBuffer      int    `yaml:"feedBuffer"`
}

// SnapshotConfig 描述快照持久化配置。
type SnapshotConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
	Schema  string `yaml:"schema"`
	Cron    string `yaml:"cron"`
	Retain  int    `yaml:"retain"`
}

// RateLimitConfig 描述写接口限流；RPS <= 0 表示关闭。
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default 返回未做任何覆盖时的配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Board: BoardConfig{
			PrincipalHeader: "X-Principal",
			DefaultPageSize: 20,
			MaxPageSize:     100,
			FeedBuffer:      64,
		},
		Snapshot: SnapshotConfig{
			Backend: "none",
			Path:    "data/snapshots",
			Schema:  "board",
			Cron:    "*/5 * * * *",
			Retain:  5,
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 先读取 BOARD_CONFIG_FILE 指定的 YAML 文件（可选），再用环境变量覆盖，最后校验。
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("BOARD_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		addr, err := parseAddr(raw)
		if err != nil {
			return err
		}
		c.Server.Addr = addr
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		c.Server.AllowedOrigins = splitList(raw)
	}
	shutdown, err := parseOptionalDurationEnv("SHUTDOWN_TIMEOUT")
	if err != nil {
		return err
	}
	if shutdown != nil {
		c.Server.ShutdownTimeout = *shutdown
	}

	c.Board.PrincipalHeader = getEnvOrDefault("BOARD_PRINCIPAL_HEADER", c.Board.PrincipalHeader)
	if err := overrideUint32("BOARD_DEFAULT_PAGE_SIZE", &c.Board.DefaultPageSize); err != nil {
		return err
	}
	if err := overrideUint32("BOARD_MAX_PAGE_SIZE", &c.Board.MaxPageSize); err != nil {
		return err
	}
	if err := overrideInt("BOARD_FEED_BUFFER", &c.Board.FeedBuffer); err != nil {
		return err
	}

	c.Snapshot.Backend = strings.ToLower(getEnvOrDefault("SNAPSHOT_BACKEND", c.Snapshot.Backend))
	c.Snapshot.Path = getEnvOrDefault("SNAPSHOT_PATH", c.Snapshot.Path)
	c.Snapshot.DSN = getEnvOrDefault("SNAPSHOT_DSN", c.Snapshot.DSN)
	c.Snapshot.Schema = getEnvOrDefault("SNAPSHOT_SCHEMA", c.Snapshot.Schema)
	if raw, ok := os.LookupEnv("SNAPSHOT_CRON"); ok {
		// 允许显式设为空字符串以关闭定时快照。
		c.Snapshot.Cron = strings.TrimSpace(raw)
	}
	if err := overrideInt("SNAPSHOT_RETAIN", &c.Snapshot.Retain); err != nil {
		return err
	}

	rps, err := parseOptionalFloatEnv("RATE_LIMIT_RPS")
	if err != nil {
		return err
	}
	if rps != nil {
		c.RateLimit.RPS = *rps
	}
	if err := overrideInt("RATE_LIMIT_BURST", &c.RateLimit.Burst); err != nil {
		return err
	}

	c.Log.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", c.Log.Format))
	return nil
}

// Validate 检查配置取值是否合法。
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Board),
		validation.Field(&c.Snapshot),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Log),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Second)),
	)
}

func (c BoardConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PrincipalHeader, validation.Required),
		validation.Field(&c.DefaultPageSize, validation.Required, validation.Max(c.MaxPageSize)),
		validation.Field(&c.MaxPageSize, validation.Required),
		validation.Field(&c.FeedBuffer, validation.Min(1)),
	)
}

func (c SnapshotConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In("none", "memory", "pebble", "postgres")),
		validation.Field(&c.Path, validation.When(c.Backend == "pebble", validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Backend == "postgres", validation.Required)),
		validation.Field(&c.Cron, validation.By(validCron)),
		validation.Field(&c.Retain, validation.Min(1)),
	)
}

func (c RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Burst, validation.When(c.RPS > 0, validation.Min(1))),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Format, validation.In("json", "text")),
	)
}

func validCron(value interface{}) error {
	expr, _ := value.(string)
	if expr == "" {
		return nil
	}
	if !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// parseAddr 解析服务器监听地址。
func parseAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func overrideInt(key string, dst *int) error {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return err
	}
	if val != nil {
		*dst = *val
	}
	return nil
}

func overrideUint32(key string, dst *uint32) error {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	if *val < 0 {
		return fmt.Errorf("invalid %s value %d: must not be negative", key, *val)
	}
	*dst = uint32(*val)
	return nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
