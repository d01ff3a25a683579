package rules

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// catalogFile 规则文件结构
type catalogFile struct {
	// Extend 为 true 时在内置规则上叠加，否则完全替换
	Extend bool   `yaml:"extend"`
	Rules  []Rule `yaml:"rules"`
}

// LoadFile 从 YAML 文件加载规则目录
func LoadFile(path string) (*StaticCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}
	return Parse(b)
}

// Parse 解析 YAML 规则
func Parse(b []byte) (*StaticCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("解析规则文件失败: %w", err)
	}
	for i, r := range f.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("第 %d 条规则无效: %w", i+1, err)
		}
	}
	list := f.Rules
	if f.Extend {
		list = append(DefaultRules(), f.Rules...)
	}
	return NewStaticCatalog(list), nil
}

func validateRule(r Rule) error {
	if NormalizeAction(r.Action) == "" {
		return fmt.Errorf("action 不能为空")
	}
	if r.BaseXP <= 0 {
		return fmt.Errorf("%s: base_xp 必须为正数", r.Action)
	}
	if r.CooldownHours < 0 || r.WeeklyCap < 0 {
		return fmt.Errorf("%s: cooldown_hours/weekly_cap 不能为负", r.Action)
	}
	switch r.Multiplier {
	case "", MultiplierNone, MultiplierIC, MultiplierManager:
	default:
		return fmt.Errorf("%s: 未知 multiplier %q", r.Action, r.Multiplier)
	}
	return nil
}
