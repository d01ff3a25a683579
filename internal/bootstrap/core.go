package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"
	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/pkg/config"
	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rolecache"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/service"
)

// Core 持有跨命令共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub
	Catalog   *rules.ReloadableCatalog
	Redis     *goredis.Client

	Repos struct {
		Ledger       *repository.LedgerRepository
		Profile      *repository.ProfileRepository
		Transaction  *repository.XpTransactionRepository
		Guard        *repository.GuardRepository
		Badge        *repository.BadgeRepository
		Submission   *repository.SubmissionRepository
		Organization *repository.OrgRepository
		Stats        *repository.StatsRepository
	}

	Engine *service.Engine

	cancelWatch context.CancelFunc
}

// NewCore 构建核心依赖
func NewCore(ctx context.Context, cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	loc, err := cfg.App.Location()
	if err != nil {
		closeQuietly(logCloser)
		return nil, err
	}

	db, err := repository.NewDatabase(repository.Options{
		Driver: cfg.Storage.Driver,
		DBPath: cfg.Storage.DBPath,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		closeQuietly(logCloser)
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, LogCloser: logCloser, Hub: eventbus.NewHub()}
	if db.SafeMode {
		slog.Warn("数据库处于安全模式，仅建议只读使用", "schema_version", db.SchemaVersion, "error", db.MigrationError)
	}

	// Repos
	c.Repos.Ledger = repository.NewLedgerRepository(db.DB)
	c.Repos.Profile = repository.NewProfileRepository(db.DB)
	c.Repos.Transaction = repository.NewXpTransactionRepository(db.DB)
	c.Repos.Guard = repository.NewGuardRepository(db.DB)
	c.Repos.Badge = repository.NewBadgeRepository(db.DB)
	c.Repos.Submission = repository.NewSubmissionRepository(db.DB)
	c.Repos.Organization = repository.NewOrgRepository(db.DB)
	c.Repos.Stats = repository.NewStatsRepository(db.DB)

	// Rules
	initial := rules.Default()
	if cfg.Rules.CatalogPath != "" {
		loaded, err := rules.LoadFile(cfg.Rules.CatalogPath)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		initial = loaded
	}
	c.Catalog = rules.NewReloadableCatalog(initial)

	// Role cache
	settings := service.Settings{
		Location:         loc,
		RoleCacheTTL:     cfg.Gamification.RoleCacheTTL(),
		RoleBatchSize:    cfg.Gamification.RoleBatchSize,
		RoleParallelism:  cfg.Gamification.RoleParallelism,
		LedgerMaxRetries: cfg.Gamification.LedgerMaxRetries,
		BadgeBonusXP:     cfg.Gamification.BadgeBonusXP,
		ApprovalRating:   cfg.Gamification.ApprovalRating,
	}
	var cache rolecache.Cache
	if cfg.Redis.Enabled {
		rdb, err := rolecache.NewRedisClient(ctx, rolecache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Redis = rdb
		cache = rolecache.NewRedis(rdb, cfg.Redis.KeyPrefix, nil)
	} else {
		cache = rolecache.NewMemory(0, settings.RoleCacheTTL, nil)
	}

	// Engine
	c.Engine = service.NewEngine(service.EngineDeps{
		Catalog:      c.Catalog,
		Ledger:       c.Repos.Ledger,
		Profiles:     c.Repos.Profile,
		Transactions: c.Repos.Transaction,
		Guard:        c.Repos.Guard,
		Badges:       c.Repos.Badge,
		Submissions:  c.Repos.Submission,
		Org:          c.Repos.Organization,
		RoleCache:    cache,
		Events:       c.Hub,
		Settings:     settings,
	})

	if cfg.Rules.Watch && cfg.Rules.CatalogPath != "" {
		c.StartRulesWatch(ctx)
	}
	return c, nil
}

// StartRulesWatch 后台监听规则文件，Close 时停止
func (c *Core) StartRulesWatch(ctx context.Context) {
	if c.cancelWatch != nil || c.Cfg.Rules.CatalogPath == "" {
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	c.cancelWatch = cancel
	path := c.Cfg.Rules.CatalogPath
	go func() {
		if err := c.Catalog.Watch(watchCtx, path); err != nil {
			slog.Warn("规则文件监听退出", "path", path, "error", err)
		}
	}()
	slog.Info("开始监听规则文件", "path", path)
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭 redis 失败: %w", err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closeQuietly(c.LogCloser)
	return errors.Join(errs...)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
