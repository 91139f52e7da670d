package game

import "math"

// LevelCurve maps total XP to a level. Implementations must be
// monotonically non-decreasing in XP.
type LevelCurve func(totalXP int64) int

// xpPerLevelUnit controls how fast the default curve grows.
const xpPerLevelUnit = 100

// DefaultLevelCurve starts everyone at level 1 and grows with the square
// root of total XP: 100 XP reaches level 2, 400 level 3, 900 level 4.
func DefaultLevelCurve(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	return 1 + int(math.Sqrt(float64(totalXP)/xpPerLevelUnit))
}
