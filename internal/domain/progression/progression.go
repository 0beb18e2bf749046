// Package progression maps cumulative XP to levels and back.
//
// The requirement for level L (n = L-1) is 11 * (50 + 0.04n³ + 0.8n² + 2n + 0.5),
// rounded up to the next whole XP. Scaling by 100 keeps the arithmetic exact:
// ceil(11 * (4n³ + 80n² + 200n + 5050) / 100). Level 1 requires nothing.
package progression

// MaxLevel caps every derived level.
const MaxLevel = 100

// thresholds[L] holds XPRequiredFor(L) for L in [1, MaxLevel+1].
var thresholds = buildThresholds()

func buildThresholds() [MaxLevel + 2]int64 {
	var t [MaxLevel + 2]int64
	for level := 2; level <= MaxLevel+1; level++ {
		t[level] = requirement(level)
	}
	return t
}

func requirement(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	scaled := 11 * (4*n*n*n + 80*n*n + 200*n + 5050)
	return (scaled + 99) / 100
}

// XPRequiredFor returns the cumulative XP needed to reach level.
// Levels below 1 are treated as 1 and levels above MaxLevel+1 are computed directly.
func XPRequiredFor(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level <= MaxLevel+1 {
		return thresholds[level]
	}
	return requirement(level)
}

// LevelFor returns the level L with XPRequiredFor(L) <= xp < XPRequiredFor(L+1),
// clamped to [1, MaxLevel].
func LevelFor(xp int64) int {
	if xp <= 0 {
		return 1
	}
	lo, hi := 1, MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if thresholds[mid] <= xp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Info is a user's position within the current level.
type Info struct {
	Level          int
	XP             int64
	CurrentLevelXP int64
	NextLevelXP    int64 // 0 at MaxLevel
	XPNeeded       int64 // 0 at MaxLevel
	Percent        float64
	MaxLevel       bool
}

// Progress describes how far xp is through its level.
func Progress(xp int64) Info {
	if xp < 0 {
		xp = 0
	}
	level := LevelFor(xp)
	info := Info{
		Level:          level,
		XP:             xp,
		CurrentLevelXP: XPRequiredFor(level),
	}
	if level >= MaxLevel {
		info.MaxLevel = true
		info.Percent = 100
		return info
	}
	info.NextLevelXP = XPRequiredFor(level + 1)
	info.XPNeeded = info.NextLevelXP - xp
	span := info.NextLevelXP - info.CurrentLevelXP
	info.Percent = float64(xp-info.CurrentLevelXP) * 100 / float64(span)
	return info
}
