// Package scoring implements the arcade's score mechanics: per-game base
// scores plus difficulty, level, streak and time bonuses.
package scoring

// Event captures everything a game run can be scored on.
type Event struct {
	LinesCleared     int
	FruitsEaten      int
	PelletsEaten     int
	GhostsEaten      int
	EnemiesDestroyed int
	Level            int
}

// tetrisLineScores maps lines cleared at once to base points.
var tetrisLineScores = map[int]int{0: 0, 1: 100, 2: 300, 3: 500, 4: 800}

// TetrisScore scores cleared lines, scaled by the current level.
func TetrisScore(e Event) int {
	return tetrisLineScores[e.LinesCleared] * e.Level
}

// SnakeScore scores eaten fruits.
func SnakeScore(e Event) int {
	return e.FruitsEaten * 10
}

// PacmanScore scores pellets and eaten ghosts.
func PacmanScore(e Event) int {
	return e.PelletsEaten + e.GhostsEaten*5
}

// InvadersScore scores destroyed enemies.
func InvadersScore(e Event) int {
	return e.EnemiesDestroyed * 20
}

// HybridScore combines all component game scores.
func HybridScore(e Event) int {
	return TetrisScore(e) + SnakeScore(e) + PacmanScore(e) + InvadersScore(e)
}

// difficultyMultipliers scales base scores per selected difficulty.
var difficultyMultipliers = map[string]float64{
	"easy":         0.8,
	"intermediate": 1.0,
	"hard":         1.5,
}

// MultiplierBonus returns the difficulty multiplier and the flat level
// bonus. Every 10th level grants level*10 bonus points. Unknown
// difficulties score as intermediate.
func MultiplierBonus(difficulty string, levels int) (float64, int) {
	multiplier, ok := difficultyMultipliers[difficulty]
	if !ok {
		multiplier = 1.0
	}
	bonus := 0
	if levels > 0 && levels%10 == 0 {
		bonus = levels * 10
	}
	return multiplier, bonus
}

// StreakReward converts login and daily-play streaks into bonus points.
// The daily streak only counts for the first 10 games.
func StreakReward(loginStreak, dailyStreak int) int {
	reward := 0
	if loginStreak > 0 {
		reward += loginStreak * 10
	}
	if dailyStreak > 0 {
		if dailyStreak > 10 {
			dailyStreak = 10
		}
		reward += dailyStreak * 5
	}
	return reward
}

// TimeBonus rewards longer sessions: 5-10 min 100 pts, 10-15 min 200 pts,
// 15+ min 300 pts. seconds below 5 minutes earn nothing.
func TimeBonus(seconds int) int {
	switch {
	case seconds > 900:
		return 300
	case seconds > 600:
		return 200
	case seconds >= 300:
		return 100
	default:
		return 0
	}
}

// Breakdown holds every component of a final score for display.
type Breakdown struct {
	BaseScore       int     `json:"base_score"`
	Difficulty      string  `json:"difficulty"`
	Multiplier      float64 `json:"multiplier"`
	MultipliedScore int     `json:"multiplied_score"`
	LevelBonus      int     `json:"level_bonus"`
	StreakBonus     int     `json:"streak_bonus"`
	TimeBonus       int     `json:"time_bonus"`
	FinalScore      int     `json:"final_score"`
}

// FinalScore computes (base * multiplier) + streak + time + level bonuses.
func FinalScore(baseScore int, difficulty string, levels, loginStreak, dailyStreak, timePlayedSec int) int {
	return CalculateBreakdown(baseScore, difficulty, levels, loginStreak, dailyStreak, timePlayedSec).FinalScore
}

// CalculateBreakdown computes the final score and returns the full
// component breakdown.
func CalculateBreakdown(baseScore int, difficulty string, levels, loginStreak, dailyStreak, timePlayedSec int) Breakdown {
	multiplier, levelBonus := MultiplierBonus(difficulty, levels)
	streakBonus := StreakReward(loginStreak, dailyStreak)
	timeBonus := TimeBonus(timePlayedSec)
	multiplied := int(float64(baseScore) * multiplier)
	return Breakdown{
		BaseScore:       baseScore,
		Difficulty:      difficulty,
		Multiplier:      multiplier,
		MultipliedScore: multiplied,
		LevelBonus:      levelBonus,
		StreakBonus:     streakBonus,
		TimeBonus:       timeBonus,
		FinalScore:      multiplied + streakBonus + timeBonus + levelBonus,
	}
}
