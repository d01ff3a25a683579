package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/xpforge/internal/service"
)

// awardCmd 入账
func awardCmd() *cobra.Command {
	var (
		user, workspace, reason, sourceType, sourceID string
		amount                                        int64
	)

	cmd := &cobra.Command{
		Use:   "award [action]",
		Short: "为动作入账经验（或用 --amount 指定自定义经验）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := ""
			if len(args) == 1 {
				action = args[0]
			}
			snap, err := core.Engine.Award(cmd.Context(), service.AwardRequest{
				UserID:       user,
				WorkspaceID:  workspace,
				Action:       action,
				CustomAmount: amount,
				Reason:       reason,
				SourceType:   sourceType,
				SourceID:     sourceID,
			})
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().Int64Var(&amount, "amount", 0, "自定义经验（覆盖目录基础经验）")
	cmd.Flags().StringVar(&reason, "reason", "", "原因")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "来源类型")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "来源 ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// subtractCmd 扣减
func subtractCmd() *cobra.Command {
	var (
		user, workspace, reason string
		amount                  int64
	)

	cmd := &cobra.Command{
		Use:   "subtract",
		Short: "扣减经验（不会低于 0）",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := core.Engine.SubtractXP(cmd.Context(), user, workspace, amount, reason)
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().Int64Var(&amount, "amount", 0, "扣减经验")
	cmd.Flags().StringVar(&reason, "reason", "", "原因")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// canSubmitCmd 预检查
func canSubmitCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "can-submit [action]",
		Short: "检查动作当前是否可计分",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elig, err := core.Engine.CanSubmit(cmd.Context(), user, args[0])
			if err != nil {
				return err
			}
			if printJSON(elig) {
				return nil
			}
			if elig.Allowed {
				fmt.Printf("✅ %s 可以提交\n", args[0])
				return nil
			}
			fmt.Printf("⛔ %s 暂不可提交\n", args[0])
			for _, r := range elig.Reasons {
				fmt.Printf("  • %s\n", r.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// profileCmd 档案
func profileCmd() *cobra.Command {
	var user, workspace string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "查看经验档案",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := core.Engine.GetProfile(cmd.Context(), user, workspace)
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// historyCmd 流水
func historyCmd() *cobra.Command {
	var (
		user, workspace string
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看经验流水",
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := core.Engine.History(cmd.Context(), user, workspace, limit)
			if err != nil {
				return err
			}
			if printJSON(txs) {
				return nil
			}
			if len(txs) == 0 {
				fmt.Println("📚 暂无流水")
				return nil
			}
			for _, t := range txs {
				at := time.UnixMilli(t.Timestamp).Format("2006-01-02 15:04")
				line := fmt.Sprintf("  %s  %+6d  %-28s %d → %d", at, t.Amount, t.Source, t.PreviousXP, t.NewXP)
				if t.Amount != t.Requested {
					line += fmt.Sprintf("  (请求 %+d)", t.Requested)
				}
				if t.LeveledUp {
					line += fmt.Sprintf("  ⬆ Lv.%d", t.NewLevel)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "最多条数")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// leaderboardCmd 排行
func leaderboardCmd() *cobra.Command {
	var (
		workspace string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "工作区经验排行",
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := core.Engine.Leaderboard(cmd.Context(), workspace, limit)
			if err != nil {
				return err
			}
			if printJSON(board) {
				return nil
			}
			fmt.Printf("🏆 %s 排行榜\n", workspace)
			fmt.Println("═══════════════════════════════════════")
			for _, e := range board {
				fmt.Printf("  #%-3d %-20s Lv.%-3d %6d XP  🔥%d  %s\n", e.Rank, e.UserID, e.Level, e.TotalXP, e.Streak, e.Role)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "条数")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// badgesCmd 成就
func badgesCmd() *cobra.Command {
	var user, workspace string

	cmd := &cobra.Command{
		Use:   "badges",
		Short: "查看成就（已解锁与未解锁）",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := core.Engine.GetBadges(cmd.Context(), user, workspace)
			if err != nil {
				return err
			}
			if printJSON(views) {
				return nil
			}
			for _, v := range views {
				mark := "⬜"
				if v.Earned {
					mark = "🏅"
				}
				fmt.Printf("  %s %-20s %-12s %s\n", mark, v.Type, v.Category, v.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// rulesCmd 规则目录
func rulesCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "列出当前规则目录",
		RunE: func(cmd *cobra.Command, args []string) error {
			printRules()
			if !watch {
				return nil
			}
			if core.Cfg.Rules.CatalogPath == "" {
				return fmt.Errorf("未配置 rules.catalog_path，无法监听")
			}
			fmt.Printf("👀 监听规则文件 %s（Ctrl+C 退出）\n", core.Cfg.Rules.CatalogPath)
			if err := core.Catalog.Watch(cmd.Context(), core.Cfg.Rules.CatalogPath); err != nil {
				return err
			}
			printRules()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "监听规则文件变化并热加载")
	return cmd
}

func printRules() {
	list := core.Engine.Rules()
	if printJSON(list) {
		return
	}
	for _, r := range list {
		fmt.Printf("  %-32s %4d XP  冷却 %2dh  周上限 %2d  加成 %-7s", r.Action, r.BaseXP, r.CooldownHours, r.WeeklyCap, r.Multiplier)
		if r.RequiresEvidence {
			fmt.Print("  需证据")
		}
		if r.RequiresValidation {
			fmt.Print("  需审核")
		}
		fmt.Println()
	}
}

// deactivateCmd 停用工作区
func deactivateCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "deactivate-workspace",
		Short: "停用工作区内所有档案（保留流水）",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := core.Engine.DeactivateWorkspace(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已停用 %d 个档案\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
