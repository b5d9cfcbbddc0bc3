package scoring

import "testing"

func TestTetrisScore(t *testing.T) {
	cases := []struct {
		lines, level, want int
	}{
		{0, 5, 0},
		{1, 1, 100},
		{2, 2, 600},
		{3, 1, 500},
		{4, 3, 2400},
		{5, 1, 0}, // impossible clear count scores nothing
	}
	for _, c := range cases {
		got := TetrisScore(Event{LinesCleared: c.lines, Level: c.level})
		if got != c.want {
			t.Errorf("TetrisScore(lines=%d, level=%d) = %d, want %d", c.lines, c.level, got, c.want)
		}
	}
}

func TestBaseScores(t *testing.T) {
	e := Event{FruitsEaten: 3, PelletsEaten: 10, GhostsEaten: 2, EnemiesDestroyed: 4, LinesCleared: 1, Level: 1}
	if got := SnakeScore(e); got != 30 {
		t.Errorf("SnakeScore = %d, want 30", got)
	}
	if got := PacmanScore(e); got != 20 {
		t.Errorf("PacmanScore = %d, want 20", got)
	}
	if got := InvadersScore(e); got != 80 {
		t.Errorf("InvadersScore = %d, want 80", got)
	}
	// Hybrid sums all components
	want := TetrisScore(e) + SnakeScore(e) + PacmanScore(e) + InvadersScore(e)
	if got := HybridScore(e); got != want {
		t.Errorf("HybridScore = %d, want %d", got, want)
	}
}

func TestMultiplierBonus(t *testing.T) {
	if m, _ := MultiplierBonus("easy", 1); m != 0.8 {
		t.Errorf("easy multiplier = %v, want 0.8", m)
	}
	if m, _ := MultiplierBonus("hard", 1); m != 1.5 {
		t.Errorf("hard multiplier = %v, want 1.5", m)
	}
	if m, _ := MultiplierBonus("nightmare", 1); m != 1.0 {
		t.Errorf("unknown difficulty multiplier = %v, want 1.0", m)
	}
	// Level bonus only on multiples of 10
	if _, b := MultiplierBonus("intermediate", 10); b != 100 {
		t.Errorf("level 10 bonus = %d, want 100", b)
	}
	if _, b := MultiplierBonus("intermediate", 20); b != 200 {
		t.Errorf("level 20 bonus = %d, want 200", b)
	}
	if _, b := MultiplierBonus("intermediate", 7); b != 0 {
		t.Errorf("level 7 bonus = %d, want 0", b)
	}
}

func TestStreakReward(t *testing.T) {
	if got := StreakReward(0, 0); got != 0 {
		t.Errorf("no streaks = %d, want 0", got)
	}
	if got := StreakReward(3, 0); got != 30 {
		t.Errorf("login streak 3 = %d, want 30", got)
	}
	if got := StreakReward(0, 4); got != 20 {
		t.Errorf("daily streak 4 = %d, want 20", got)
	}
	// Daily streak is capped at 10
	if got := StreakReward(0, 25); got != 50 {
		t.Errorf("daily streak 25 = %d, want 50 (capped)", got)
	}
	if got := StreakReward(2, 2); got != 30 {
		t.Errorf("combined streaks = %d, want 30", got)
	}
}

func TestTimeBonus(t *testing.T) {
	cases := []struct{ sec, want int }{
		{0, 0},
		{299, 0},
		{300, 100},
		{600, 100},
		{601, 200},
		{900, 200},
		{901, 300},
	}
	for _, c := range cases {
		if got := TimeBonus(c.sec); got != c.want {
			t.Errorf("TimeBonus(%d) = %d, want %d", c.sec, got, c.want)
		}
	}
}

func TestCalculateBreakdown(t *testing.T) {
	b := CalculateBreakdown(1000, "hard", 10, 2, 3, 700)

	if b.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", b.Multiplier)
	}
	if b.MultipliedScore != 1500 {
		t.Errorf("MultipliedScore = %d, want 1500", b.MultipliedScore)
	}
	if b.LevelBonus != 100 {
		t.Errorf("LevelBonus = %d, want 100", b.LevelBonus)
	}
	if b.StreakBonus != 35 {
		t.Errorf("StreakBonus = %d, want 35", b.StreakBonus)
	}
	if b.TimeBonus != 200 {
		t.Errorf("TimeBonus = %d, want 200", b.TimeBonus)
	}
	want := 1500 + 100 + 35 + 200
	if b.FinalScore != want {
		t.Errorf("FinalScore = %d, want %d", b.FinalScore, want)
	}
	if got := FinalScore(1000, "hard", 10, 2, 3, 700); got != want {
		t.Errorf("FinalScore = %d, want %d", got, want)
	}
}
