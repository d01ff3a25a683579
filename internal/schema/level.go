package schema

import "math"

// XPPerLevelUnit 等级公式的缩放单位
const XPPerLevelUnit int64 = 100

// LevelForXP 规范等级公式：level = floor(sqrt(totalXP / 100)) + 1。
// 全仓库只允许通过这里计算等级。
func LevelForXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	// floor(sqrt(x)) == floor(sqrt(floor(x)))，整数化后再开方
	n := totalXP / XPPerLevelUnit
	r := int64(math.Sqrt(float64(n)))
	for r > 0 && r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return int(r) + 1
}

// LevelStartXP 到达指定等级所需的累计经验
func LevelStartXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level - 1)
	return l * l * XPPerLevelUnit
}

// LevelProgress 等级进度（派生值，不落库）
type LevelProgress struct {
	Level       int   `json:"level"`
	CurrentXP   int64 `json:"current_xp"`    // 当前等级内已获得的经验
	NextLevelXP int64 `json:"next_level_xp"` // 当前等级区间的总经验
	Progress    int   `json:"progress"`      // 0-100
}

// ProgressForXP 根据累计经验计算等级进度
func ProgressForXP(totalXP int64) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelForXP(totalXP)
	start := LevelStartXP(level)
	span := LevelStartXP(level+1) - start

	current := totalXP - start
	progress := 0
	if span > 0 {
		progress = int(current * 100 / span)
	}
	if progress > 100 {
		progress = 100
	}
	return LevelProgress{
		Level:       level,
		CurrentXP:   current,
		NextLevelXP: span,
		Progress:    progress,
	}
}
