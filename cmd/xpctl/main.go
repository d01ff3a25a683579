package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/xpforge/internal/bootstrap"
	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/pkg/buildinfo"
	"github.com/yuqie6/xpforge/internal/service"
)

var (
	cfgFile    string
	jsonOutput bool
	showEvents bool
	core       *bootstrap.Core
	events     <-chan eventbus.Event
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "xpctl",
		Short:   "xpforge - 经验账本与防刷分引擎",
		Long:    `xpctl 直接调用 xpforge 引擎：入账、扣减、提交审核、成就与排行查询。`,
		Version: fmt.Sprintf("%s (%s)", buildinfo.Version, buildinfo.Commit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			core, err = bootstrap.NewCore(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			if showEvents {
				events = core.Hub.Subscribe(cmd.Context(), 256)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			drainEvents()
			if core != nil {
				_ = core.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	rootCmd.PersistentFlags().BoolVar(&showEvents, "events", false, "命令结束后打印引擎事件")

	// 账本
	rootCmd.AddCommand(awardCmd())
	rootCmd.AddCommand(subtractCmd())
	rootCmd.AddCommand(canSubmitCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(badgesCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(deactivateCmd())

	// 角色
	rootCmd.AddCommand(roleCmd())

	// 审核
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(gamingCmd())

	// 运行状态
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		// RunE 出错时 PersistentPostRun 不会执行
		if core != nil {
			_ = core.Close()
		}
		os.Exit(1)
	}
}

// printJSON --json 模式下输出结果，返回是否已输出
func printJSON(v any) bool {
	if !jsonOutput {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return true
}

// printError 按错误类别输出可读信息
func printError(err error) {
	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		fmt.Printf("⛔ 动作 %s 暂不可计分\n", rl.Action)
		for _, r := range rl.Reasons {
			fmt.Printf("  • %s\n", r.Message)
		}
	case errors.Is(err, service.ErrValidation):
		fmt.Printf("⚠️  %v\n", err)
	case errors.Is(err, service.ErrNotFound):
		fmt.Printf("🔍 %v\n", err)
	case errors.Is(err, service.ErrConcurrencyConflict):
		fmt.Printf("🔁 并发冲突，请重试: %v\n", err)
	default:
		fmt.Printf("❌ %v\n", err)
	}
}

func printSnapshot(s *service.ProfileSnapshot) {
	if printJSON(s) {
		return
	}
	fmt.Printf("👤 %s @ %s\n", s.UserID, s.WorkspaceID)
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  • 总经验: %d\n", s.TotalXP)
	fmt.Printf("  • 等级: Lv.%d (%d/%d, %d%%)\n", s.Level, s.CurrentXP, s.NextLevelXP, s.ProgressToNextLevel)
	fmt.Printf("  • 连续活跃: %d 天 (%s)\n", s.Streak, s.StreakStatus)
	if s.TransactionID != "" {
		fmt.Printf("  • 本次变化: %+d\n", s.Applied)
	}
	if s.LeveledUp {
		fmt.Printf("\n🎉 升级到 Lv.%d\n", s.Level)
	}
	for _, b := range s.NewBadges {
		fmt.Printf("🏅 解锁成就: %s (%s)\n", b.Name, b.Type)
	}
}

// drainEvents 打印本次命令产生的事件
func drainEvents() {
	if events == nil {
		return
	}
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if printJSON(evt) {
				continue
			}
			at := time.UnixMilli(evt.Timestamp).Format("15:04:05")
			fmt.Printf("📣 %s  %-18s %s@%s  %v\n", at, evt.Type, evt.UserID, evt.Workspace, evt.Data)
		default:
			return
		}
	}
}
