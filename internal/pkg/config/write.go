package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// Marshal 渲染为 YAML，键名与 Load 读取的一致
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg 不能为空")
	}
	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
			"timezone":  cfg.App.Timezone,
		},
		"storage": map[string]any{
			"driver":  cfg.Storage.Driver,
			"db_path": cfg.Storage.DBPath,
			"dsn":     cfg.Storage.DSN,
		},
		"redis": map[string]any{
			"enabled":    cfg.Redis.Enabled,
			"addr":       cfg.Redis.Addr,
			"password":   cfg.Redis.Password,
			"db":         cfg.Redis.DB,
			"key_prefix": cfg.Redis.KeyPrefix,
		},
		"gamification": map[string]any{
			"role_cache_ttl_hours": cfg.Gamification.RoleCacheTTLHours,
			"role_batch_size":      cfg.Gamification.RoleBatchSize,
			"role_parallelism":     cfg.Gamification.RoleParallelism,
			"ledger_max_retries":   cfg.Gamification.LedgerMaxRetries,
			"badge_bonus_xp":       cfg.Gamification.BadgeBonusXP,
			"approval_rating":      cfg.Gamification.ApprovalRating,
		},
		"rules": map[string]any{
			"catalog_path": cfg.Rules.CatalogPath,
			"watch":        cfg.Rules.Watch,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化配置失败: %w", err)
	}
	return b, nil
}

func WriteFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}
	b, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
