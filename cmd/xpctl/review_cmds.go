package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuqie6/xpforge/internal/schema"
	"github.com/yuqie6/xpforge/internal/service"
)

// roleCmd 角色判定与失效
func roleCmd() *cobra.Command {
	var invalidate, all bool

	cmd := &cobra.Command{
		Use:   "role [user]",
		Short: "判定用户角色，或使缓存失效",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if all {
				if err := core.Engine.InvalidateAllRoles(ctx); err != nil {
					return err
				}
				fmt.Println("✅ 已清空角色缓存")
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("需要指定用户")
			}
			if invalidate {
				if err := core.Engine.InvalidateRole(ctx, args[0]); err != nil {
					return err
				}
			}
			role, err := core.Engine.DetectRole(ctx, args[0])
			if err != nil {
				return err
			}
			if printJSON(map[string]any{"user_id": args[0], "role": role}) {
				return nil
			}
			fmt.Printf("👤 %s: %s\n", args[0], role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&invalidate, "invalidate", false, "先使该用户缓存失效再判定")
	cmd.Flags().BoolVar(&all, "invalidate-all", false, "清空全部角色缓存")
	return cmd
}

// submitCmd 手动提交
func submitCmd() *cobra.Command {
	var user, workspace, evidence, description, metadata string

	cmd := &cobra.Command{
		Use:   "submit [action]",
		Short: "提交手动动作（需要审核的进入待审核队列）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta map[string]any
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return fmt.Errorf("metadata 不是合法 JSON: %w", err)
				}
			}
			res, err := core.Engine.SubmitManualAction(cmd.Context(), user, workspace, args[0], service.SubmissionInput{
				Evidence:    evidence,
				Metadata:    meta,
				Description: description,
			})
			if err != nil {
				return err
			}
			if printJSON(res) {
				return nil
			}
			fmt.Printf("📨 提交 %s: %s\n", res.Submission.ID, res.Submission.Status)
			if res.Gaming != nil && res.Gaming.IsGaming {
				fmt.Printf("⚠️  已标记人工复核 (置信度 %.1f)\n", res.Gaming.Confidence)
			}
			if res.Profile != nil {
				printSnapshot(res.Profile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 ID")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().StringVar(&evidence, "evidence", "", "证据（链接或说明）")
	cmd.Flags().StringVar(&description, "description", "", "描述")
	cmd.Flags().StringVar(&metadata, "metadata", "", "附加信息（JSON 对象）")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// validateCmd 审核
func validateCmd() *cobra.Command {
	var (
		validator, status, feedback string
		rating                      float64
	)

	cmd := &cobra.Command{
		Use:   "validate [submission-id]",
		Short: "审核提交（approved / rejected / requires_evidence）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := core.Engine.ValidateSubmission(cmd.Context(), args[0], validator, service.ValidationInput{
				Rating:   rating,
				Status:   schema.SubmissionStatus(strings.ToUpper(status)),
				Feedback: feedback,
			})
			if err != nil {
				return err
			}
			if printJSON(res) {
				return nil
			}
			fmt.Printf("✅ 提交 %s → %s\n", res.Submission.ID, res.Submission.Status)
			if res.Profile != nil {
				printSnapshot(res.Profile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&validator, "validator", "", "审核人 ID")
	cmd.Flags().StringVar(&status, "status", "approved", "审核结果")
	cmd.Flags().Float64Var(&rating, "rating", 0, "评分 1-5")
	cmd.Flags().StringVar(&feedback, "feedback", "", "反馈")
	_ = cmd.MarkFlagRequired("validator")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

// evidenceCmd 补充证据
func evidenceCmd() *cobra.Command {
	var user, evidence string

	cmd := &cobra.Command{
		Use:   "evidence [submission-id]",
		Short: "为需要补充证据的提交补充证据",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := core.Engine.ProvideEvidence(cmd.Context(), args[0], user, evidence)
			if err != nil {
				return err
			}
			if printJSON(sub) {
				return nil
			}
			fmt.Printf("📎 提交 %s 已回到 %s\n", sub.ID, sub.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "提交人 ID")
	cmd.Flags().StringVar(&evidence, "evidence", "", "证据")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("evidence")
	return cmd
}

// pendingCmd 待审核队列
func pendingCmd() *cobra.Command {
	var (
		workspace string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "工作区待审核提交",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := core.Engine.ListPending(cmd.Context(), workspace, limit)
			if err != nil {
				return err
			}
			if printJSON(list) {
				return nil
			}
			if len(list) == 0 {
				fmt.Println("📭 没有待审核的提交")
				return nil
			}
			for _, s := range list {
				flag := ""
				if s.FlaggedForReview {
					flag = "  ⚠️ 疑似刷分"
				}
				fmt.Printf("  %s  %-12s %-28s %s%s\n", s.ID, s.UserID, s.Action, truncateString(s.Description, 40), flag)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "工作区 ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "条数")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// gamingCmd 刷分嫌疑
func gamingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gaming [user]",
		Short: "查看用户的刷分嫌疑报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := core.Engine.GamingReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if printJSON(report) {
				return nil
			}
			verdict := "✅ 正常"
			if report.IsGaming {
				verdict = "⚠️  疑似刷分"
			}
			fmt.Printf("%s (置信度 %.1f)\n", verdict, report.Confidence)
			fmt.Printf("  • 24 小时提交: %d\n", report.Submissions24)
			fmt.Printf("  • 拒绝率: %.0f%%\n", report.RejectionRate*100)
			for _, s := range report.Signals {
				fmt.Printf("  • 信号: %s\n", s)
			}
			return nil
		},
	}
}

// truncateString 截断字符串
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
