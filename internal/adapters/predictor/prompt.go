package predictor

import (
	"fmt"
	"strings"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const systemPrompt = `You are a BTC/USD short-term price analyst for a two-party prediction game.
Each wager bets whether the BTC/USD oracle price is higher (UP) or lower (DOWN) than
the start price after a fixed duration. Answer ONLY with one JSON object, no prose.`

const maxHistoryLines = 48

func predictPrompt(mc domain.MarketContext) string {
	var b strings.Builder
	writeContext(&b, mc)
	b.WriteString(`
Decide whether to open a new wager. Reply with:
{"direction":"UP"|"DOWN"|"NEUTRAL","confidence":0-100,"reasoning":"...","durationSeconds":<int>,"stakePercent":<number>}
Use NEUTRAL when there is no edge.`)
	return b.String()
}

func acceptPrompt(mc domain.MarketContext, w domain.Wager) string {
	var b strings.Builder
	writeContext(&b, mc)
	fmt.Fprintf(&b, "\nOpen wager #%d by %s: creator bets %s over %ds, stake %d base units.\n",
		w.ID, w.Creator, w.Direction, w.Duration, w.Stake)
	fmt.Fprintf(&b, "Accepting means betting %s from the moment of acceptance.\n", w.Direction.Opposite())
	b.WriteString(`Reply with: {"accept":true|false,"confidence":0-100,"reasoning":"..."}`)
	return b.String()
}

func writeContext(b *strings.Builder, mc domain.MarketContext) {
	fmt.Fprintf(b, "Current price: %.2f\n", mc.CurrentPrice)
	for _, c := range []struct {
		label string
		v     *float64
	}{{"1h", mc.Change1h}, {"24h", mc.Change24h}, {"7d", mc.Change7d}, {"30d", mc.Change30d}} {
		if c.v != nil {
			fmt.Fprintf(b, "Change %s: %+.2f%%\n", c.label, *c.v)
		}
	}
	fmt.Fprintf(b, "Volatility (stddev of returns): %.4f%%\n", mc.Volatility)

	if ind := mc.Indicators; ind != nil {
		fmt.Fprintf(b, "SMA20 %.2f SMA50 %.2f EMA12 %.2f EMA26 %.2f MACD %.2f RSI14 %.1f\n",
			ind.SMA20, ind.SMA50, ind.EMA12, ind.EMA26, ind.MACD, ind.RSI14)
		fmt.Fprintf(b, "Bollinger %.2f / %.2f / %.2f ATR14 %.2f\n", ind.BollUpper, ind.BollMiddle, ind.BollLower, ind.ATR14)
	}

	hist := mc.PriceHistory
	if len(hist) > maxHistoryLines {
		hist = hist[len(hist)-maxHistoryLines:]
	}
	if len(hist) > 0 {
		b.WriteString("Recent prices (oldest first):\n")
		for _, p := range hist {
			fmt.Fprintf(b, "%s %.2f\n", p.Timestamp.UTC().Format("01-02 15:04"), p.Price)
		}
	}

	perf := mc.Performance
	fmt.Fprintf(b, "Track record: %dW/%dL/%dT, win rate %.1f%%, streak %d, net %.4f\n",
		perf.Wins, perf.Losses, perf.Ties, perf.WinRate(), perf.CurrentStreak, perf.NetPnL())
}
