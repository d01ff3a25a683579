package service

import (
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// 加成以分数表示，避免浮点误差：IC ×1.3，MANAGER ×2.0
const (
	icMultiplierNum      = 13
	icMultiplierDen      = 10
	managerMultiplierNum = 2
	managerMultiplierDen = 1
)

// Multiplier 返回角色对该动作的加成（分子、分母）
func Multiplier(role schema.Role, tag rules.MultiplierTag) (num, den int64) {
	switch {
	case role == schema.RoleIC && tag == rules.MultiplierIC:
		return icMultiplierNum, icMultiplierDen
	case role == schema.RoleManager && tag == rules.MultiplierManager:
		return managerMultiplierNum, managerMultiplierDen
	default:
		return 1, 1
	}
}

// ApplyMultiplier 纯函数：按角色与动作标签缩放基础经验，向下取整
func ApplyMultiplier(role schema.Role, rule rules.Rule, baseXP int64) int64 {
	if baseXP <= 0 {
		return baseXP
	}
	num, den := Multiplier(role, rule.Multiplier)
	return baseXP * num / den
}
