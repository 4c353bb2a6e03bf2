package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func trailingRun(seq []bool) int {
	if len(seq) == 0 {
		return 0
	}
	last := seq[len(seq)-1]
	n := 0
	for i := len(seq) - 1; i >= 0 && seq[i] == last; i-- {
		n++
	}
	if last {
		return n
	}
	return -n
}

func TestStreak_TrailingRunLength(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		d := NewDailyPerformance(time.Now(), 0)
		var seq []bool
		prevBest, prevWorst := 0, 0
		n := 1 + r.Intn(30)
		for i := 0; i < n; i++ {
			switch r.Intn(3) {
			case 0:
				d.RecordWin(1)
				seq = append(seq, true)
			case 1:
				d.RecordLoss(1)
				seq = append(seq, false)
			default:
				d.RecordTie()
			}
			assert.GreaterOrEqual(t, d.BestWinStreak, prevBest)
			assert.LessOrEqual(t, d.WorstLossStreak, prevWorst)
			prevBest, prevWorst = d.BestWinStreak, d.WorstLossStreak
		}
		assert.Equal(t, trailingRun(seq), d.CurrentStreak)
	}
}

func TestStreak_CarriesAcrossDays(t *testing.T) {
	day1 := NewDailyPerformance(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC), 0)
	day1.RecordWin(5)
	day1.RecordWin(5)

	day2 := NewDailyPerformance(time.Date(2026, 1, 2, 0, 5, 0, 0, time.UTC), day1.CurrentStreak)
	day2.RecordWin(5)
	assert.Equal(t, 3, day2.CurrentStreak)
	assert.Equal(t, 3, day2.BestWinStreak)

	day2.RecordLoss(2)
	assert.Equal(t, -1, day2.CurrentStreak)
	assert.Equal(t, -1, day2.WorstLossStreak)
}

func TestDailyPerformance_ThreeWinsOneLoss(t *testing.T) {
	d := NewDailyPerformance(time.Now(), 0)
	d.RecordWin(10)
	d.RecordLoss(8)
	d.RecordWin(5)
	d.RecordWin(5)

	assert.InDelta(t, 75.0, d.WinRate(), 1e-9)
	assert.InDelta(t, 20.0, d.TotalWon, 1e-9)
	assert.InDelta(t, 8.0, d.TotalLost, 1e-9)
	assert.Equal(t, 2, d.CurrentStreak)

	e := NewDailyPerformance(time.Now(), 0)
	e.RecordWin(10)
	e.RecordWin(5)
	e.RecordLoss(8)
	e.RecordWin(5)
	assert.Equal(t, 1, e.CurrentStreak)
}

func TestWinRate_ZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, DailyPerformance{}.WinRate())
	assert.Equal(t, 0.0, TotalPerformance{}.WinRate())
}

func TestAggregate_StreakFromLatestDay(t *testing.T) {
	days := []DailyPerformance{
		{Date: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), Wins: 1, TotalWon: 3, CurrentStreak: -2, BestWinStreak: 1, WorstLossStreak: -2, Losses: 2, TotalLost: 4},
		{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Wins: 4, TotalWon: 10, CurrentStreak: 4, BestWinStreak: 4, ResolverEarnings: 1.5},
	}
	tot := Aggregate(days)
	assert.Equal(t, 5, tot.Wins)
	assert.Equal(t, 2, tot.Losses)
	assert.Equal(t, -2, tot.CurrentStreak)
	assert.Equal(t, 4, tot.BestWinStreak)
	assert.Equal(t, -2, tot.WorstLossStreak)
	assert.InDelta(t, 10.5, tot.NetPnL(), 1e-9)
}
