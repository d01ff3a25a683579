package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
)

// OrgRepository 组织结构只读查询（角色判定输入）
type OrgRepository struct {
	db *gorm.DB
}

func NewOrgRepository(db *gorm.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// CountSubordinateRules 直属下级规则数
func (r *OrgRepository) CountSubordinateRules(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&schema.ReportingRule{}).
		Where("manager_id = ? AND subordinate_id IS NOT NULL", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("统计下级规则失败: %w", err)
	}
	return n, nil
}

// CountTeamRules 团队级管理规则数
func (r *OrgRepository) CountTeamRules(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&schema.ReportingRule{}).
		Where("manager_id = ? AND team_id IS NOT NULL", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("统计团队规则失败: %w", err)
	}
	return n, nil
}

// HasManagerMembership 是否在任一团队担任 manager
func (r *OrgRepository) HasManagerMembership(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&schema.TeamMembership{}).
		Where("user_id = ? AND role = ?", userID, schema.TeamRoleManager).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("查询团队角色失败: %w", err)
	}
	return n > 0, nil
}

// IsAdmin 是否系统管理员；用户不存在视为否
func (r *OrgRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var u schema.OrgUser
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, fmt.Errorf("查询用户失败: %w", err)
	}
	return u.IsAdmin, nil
}
