package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite 并自动迁移所有表。
// 内存库按连接隔离，因此限制为单连接。
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// StrPtr 测试辅助
func StrPtr(s string) *string {
	return &s
}
