package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Rules        RulesConfig        `mapstructure:"rules"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Timezone string `mapstructure:"timezone"` // 周上限/自然日对齐的时区，空为本地时区
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite / postgres
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig 共享角色缓存
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// GamificationConfig 计分参数
type GamificationConfig struct {
	RoleCacheTTLHours int     `mapstructure:"role_cache_ttl_hours"`
	RoleBatchSize     int     `mapstructure:"role_batch_size"`
	RoleParallelism   int     `mapstructure:"role_parallelism"`
	LedgerMaxRetries  int     `mapstructure:"ledger_max_retries"`
	BadgeBonusXP      int64   `mapstructure:"badge_bonus_xp"`
	ApprovalRating    float64 `mapstructure:"approval_rating"`
}

// RulesConfig 规则目录
type RulesConfig struct {
	CatalogPath string `mapstructure:"catalog_path"` // 空为内置规则
	Watch       bool   `mapstructure:"watch"`
}

// RoleCacheTTL 角色缓存有效期
func (g GamificationConfig) RoleCacheTTL() time.Duration {
	return time.Duration(g.RoleCacheTTLHours) * time.Hour
}

// Location 解析配置的时区
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || strings.EqualFold(a.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("XPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	if cfg.App.LogPath != "" {
		cfg.App.LogPath = resolvePath(cfg.App.LogPath)
	}
	if cfg.Rules.CatalogPath != "" {
		cfg.Rules.CatalogPath = resolvePath(cfg.Rules.CatalogPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 仅包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.driver=postgres 时必须配置 storage.dsn")
		}
	default:
		return fmt.Errorf("不支持的存储驱动 %q", c.Storage.Driver)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.enabled=true 时必须配置 redis.addr")
	}
	if c.Gamification.ApprovalRating < 1 || c.Gamification.ApprovalRating > 5 {
		return fmt.Errorf("gamification.approval_rating 必须在 1-5 之间")
	}
	if c.Gamification.BadgeBonusXP < 0 {
		return fmt.Errorf("gamification.badge_bonus_xp 不能为负数")
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "xpforge")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.timezone", "")

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/xpforge.db")
	v.SetDefault("storage.dsn", "")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "xpforge:role:")

	// Gamification
	v.SetDefault("gamification.role_cache_ttl_hours", 24)
	v.SetDefault("gamification.role_batch_size", 50)
	v.SetDefault("gamification.role_parallelism", 4)
	v.SetDefault("gamification.ledger_max_retries", 5)
	v.SetDefault("gamification.badge_bonus_xp", 0)
	v.SetDefault("gamification.approval_rating", 4.0)

	// Rules
	v.SetDefault("rules.catalog_path", "")
	v.SetDefault("rules.watch", false)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}
