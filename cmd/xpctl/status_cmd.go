package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/xpforge/internal/observability"
)

var startedAt = time.Now()

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查看存储、规则、缓存与账本概况",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := observability.BuildStatus(cmd.Context(), core, startedAt)
			if err != nil {
				return err
			}
			if printJSON(st) {
				return nil
			}

			fmt.Printf("⚙️  %s %s (%s)\n", st.App.Name, st.App.Version, st.App.Commit)
			fmt.Println("═══════════════════════════════════════")
			storage := st.Storage.DBPath
			if st.Storage.DSN != "" {
				storage = st.Storage.DSN
			}
			fmt.Printf("  • 存储: %s %s (schema v%d)\n", st.Storage.Driver, storage, st.Storage.SchemaVersion)
			if st.App.SafeMode {
				fmt.Printf("  ⚠️  安全模式: %s\n", st.Storage.SafeModeReason)
			}
			fmt.Printf("  • 时区: %s\n", st.App.Timezone)
			fmt.Printf("  • 规则: %d 条，成就 %d 个", st.Rules.Count, st.Rules.Badges)
			if st.Rules.CatalogPath != "" {
				fmt.Printf("，来自 %s", st.Rules.CatalogPath)
			}
			fmt.Println()
			fmt.Printf("  • 角色缓存: %s (TTL %dh)\n", st.RoleCache.Backend, st.RoleCache.TTLHours)

			fmt.Println("\n📒 账本")
			if st.Ledger.Error != "" {
				fmt.Printf("  ❌ %s\n", st.Ledger.Error)
				return nil
			}
			fmt.Printf("  • 档案: %d (活跃 %d)\n", st.Ledger.Profiles, st.Ledger.ActiveProfiles)
			fmt.Printf("  • 流水: %d (24h 内 %d)\n", st.Ledger.Transactions, st.Ledger.Transactions24h)
			fmt.Printf("  • 待审核提交: %d\n", st.Ledger.PendingSubmissions)
			fmt.Printf("  • 已解锁成就: %d\n", st.Ledger.Badges)
			return nil
		},
	}
}
