package rules

import (
	"sort"
	"strings"
)

// MultiplierTag 动作可享受的角色加成类别
type MultiplierTag string

const (
	MultiplierNone    MultiplierTag = "none"
	MultiplierIC      MultiplierTag = "ic"      // IC 影响力型领导
	MultiplierManager MultiplierTag = "manager" // 管理者流程影响
)

// Rule 单个动作的计分规则
type Rule struct {
	Action             string        `yaml:"action"`
	Name               string        `yaml:"name"`
	BaseXP             int64         `yaml:"base_xp"`
	CooldownHours      int           `yaml:"cooldown_hours"` // 0 表示无冷却
	WeeklyCap          int           `yaml:"weekly_cap"`     // 0 表示不限
	RequiresEvidence   bool          `yaml:"requires_evidence"`
	RequiresValidation bool          `yaml:"requires_validation"`
	Multiplier         MultiplierTag `yaml:"multiplier"`
}

// HasCooldown 是否带冷却
func (r Rule) HasCooldown() bool { return r.CooldownHours > 0 }

// HasWeeklyCap 是否带周上限
func (r Rule) HasWeeklyCap() bool { return r.WeeklyCap > 0 }

// Catalog 规则目录（可替换）
type Catalog interface {
	// Lookup 未知动作返回 BaseXP=0 的空规则与 false
	Lookup(action string) (Rule, bool)
	All() []Rule
}

// StaticCatalog 基于内存表的规则目录
type StaticCatalog struct {
	rules map[string]Rule
}

// NewStaticCatalog 从规则列表构建目录，后出现的同名动作覆盖前者
func NewStaticCatalog(list []Rule) *StaticCatalog {
	m := make(map[string]Rule, len(list))
	for _, r := range list {
		key := NormalizeAction(r.Action)
		if key == "" {
			continue
		}
		r.Action = key
		if r.Multiplier == "" {
			r.Multiplier = MultiplierNone
		}
		m[key] = r
	}
	return &StaticCatalog{rules: m}
}

func (c *StaticCatalog) Lookup(action string) (Rule, bool) {
	key := NormalizeAction(action)
	r, ok := c.rules[key]
	if !ok {
		return Rule{Action: key, BaseXP: 0, Multiplier: MultiplierNone}, false
	}
	return r, true
}

func (c *StaticCatalog) All() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// NormalizeAction 统一动作标识：小写、下划线分隔
func NormalizeAction(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	a = strings.ReplaceAll(a, "-", "_")
	a = strings.ReplaceAll(a, " ", "_")
	return a
}
