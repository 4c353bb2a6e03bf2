package domain

import "time"

// DailyPerformance aggregates outcomes for one UTC calendar day.
// CurrentStreak is a point-in-time value of a sequence that continues across
// days: positive counts consecutive wins, negative consecutive losses.
type DailyPerformance struct {
	Date             time.Time
	Wins             int
	Losses           int
	Ties             int
	TotalWon         float64
	TotalLost        float64
	ResolverEarnings float64
	CurrentStreak    int
	BestWinStreak    int
	WorstLossStreak  int
}

// NewDailyPerformance starts a day row continuing the streak of the previous day.
func NewDailyPerformance(date time.Time, carriedStreak int) DailyPerformance {
	d := DailyPerformance{Date: DayOf(date), CurrentStreak: carriedStreak}
	d.clampStreaks()
	return d
}

// DayOf truncates t to its UTC calendar date.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RecordWin applies a won wager.
func (d *DailyPerformance) RecordWin(amount float64) {
	d.Wins++
	d.TotalWon += amount
	if d.CurrentStreak > 0 {
		d.CurrentStreak++
	} else {
		d.CurrentStreak = 1
	}
	d.clampStreaks()
}

// RecordLoss applies a lost wager.
func (d *DailyPerformance) RecordLoss(amount float64) {
	d.Losses++
	d.TotalLost += amount
	if d.CurrentStreak < 0 {
		d.CurrentStreak--
	} else {
		d.CurrentStreak = -1
	}
	d.clampStreaks()
}

// RecordTie counts a tie; the streak is untouched.
func (d *DailyPerformance) RecordTie() {
	d.Ties++
}

// RecordResolverEarnings adds fees earned by resolving other wagers.
func (d *DailyPerformance) RecordResolverEarnings(amount float64) {
	d.ResolverEarnings += amount
}

func (d *DailyPerformance) clampStreaks() {
	if d.CurrentStreak > 0 && d.CurrentStreak > d.BestWinStreak {
		d.BestWinStreak = d.CurrentStreak
	}
	if d.CurrentStreak < 0 && d.CurrentStreak < d.WorstLossStreak {
		d.WorstLossStreak = d.CurrentStreak
	}
}

// NetLoss is totalLost - totalWon, the input of the daily loss guard.
func (d DailyPerformance) NetLoss() float64 {
	return d.TotalLost - d.TotalWon
}

// WinRate is wins / (wins+losses+ties) * 100, or 0 without outcomes.
func (d DailyPerformance) WinRate() float64 {
	return winRate(d.Wins, d.Losses, d.Ties)
}

// TotalPerformance aggregates every stored day.
type TotalPerformance struct {
	Days             int
	Wins             int
	Losses           int
	Ties             int
	TotalWon         float64
	TotalLost        float64
	ResolverEarnings float64
	CurrentStreak    int // from the most recent day only
	BestWinStreak    int
	WorstLossStreak  int
}

// Aggregate sums days (any order). CurrentStreak is taken from the latest date.
func Aggregate(days []DailyPerformance) TotalPerformance {
	var t TotalPerformance
	var latest time.Time
	for _, d := range days {
		t.Days++
		t.Wins += d.Wins
		t.Losses += d.Losses
		t.Ties += d.Ties
		t.TotalWon += d.TotalWon
		t.TotalLost += d.TotalLost
		t.ResolverEarnings += d.ResolverEarnings
		if d.BestWinStreak > t.BestWinStreak {
			t.BestWinStreak = d.BestWinStreak
		}
		if d.WorstLossStreak < t.WorstLossStreak {
			t.WorstLossStreak = d.WorstLossStreak
		}
		if !d.Date.Before(latest) {
			latest = d.Date
			t.CurrentStreak = d.CurrentStreak
		}
	}
	return t
}

// NetPnL is totalWon + resolverEarnings - totalLost.
func (t TotalPerformance) NetPnL() float64 {
	return t.TotalWon + t.ResolverEarnings - t.TotalLost
}

func (t TotalPerformance) WinRate() float64 {
	return winRate(t.Wins, t.Losses, t.Ties)
}

// ConfidencePerformance holds outcome statistics for one confidence bucket.
type ConfidencePerformance struct {
	Bucket    ConfidenceBucket
	Wins      int
	Losses    int
	Ties      int
	TotalWon  float64
	TotalLost float64
}

func (c ConfidencePerformance) WinRate() float64 {
	return winRate(c.Wins, c.Losses, c.Ties)
}

func winRate(wins, losses, ties int) float64 {
	n := wins + losses + ties
	if n == 0 {
		return 0
	}
	return float64(wins) / float64(n) * 100
}
