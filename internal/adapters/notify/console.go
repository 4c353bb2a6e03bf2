package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Console prints the bot's reports as tables.
type Console struct {
	out       io.Writer
	symbol    string
	precision uint8
}

// NewConsole writes to stdout.
func NewConsole(symbol string, precision uint8) *Console {
	return NewConsoleWriter(os.Stdout, symbol, precision)
}

// NewConsoleWriter writes to w instead of stdout. Used by tests.
func NewConsoleWriter(w io.Writer, symbol string, precision uint8) *Console {
	return &Console{out: w, symbol: symbol, precision: precision}
}

// StatusReport bundles everything PrintStatus needs.
type StatusReport struct {
	Account string
	Balance int64
	Paused  bool
	Today   domain.DailyPerformance
	Total   domain.TotalPerformance
	Buckets []domain.ConfidencePerformance
	Ours    []domain.Wager
	Now     time.Time
}

// PrintStatus prints balance, today's and cumulative performance, the
// confidence buckets and our wagers still in play.
func (c *Console) PrintStatus(r StatusReport) {
	fmt.Fprintf(c.out, "\n  Account:   %s\n", r.Account)
	fmt.Fprintf(c.out, "  Balance:   %s\n", c.amount(r.Balance))
	if r.Paused {
		fmt.Fprintf(c.out, "  Contract:  PAUSED\n")
	} else {
		fmt.Fprintf(c.out, "  Contract:  running\n")
	}

	fmt.Fprintf(c.out, "\n  --- PERFORMANCE ---\n")
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Period", "W", "L", "T", "Win%", "Won", "Lost", "Resolver", "Streak", "Best", "Worst")
	tbl.Append(
		"today",
		fmt.Sprintf("%d", r.Today.Wins),
		fmt.Sprintf("%d", r.Today.Losses),
		fmt.Sprintf("%d", r.Today.Ties),
		fmt.Sprintf("%.1f", r.Today.WinRate()),
		fmt.Sprintf("%.4f", r.Today.TotalWon),
		fmt.Sprintf("%.4f", r.Today.TotalLost),
		fmt.Sprintf("%.4f", r.Today.ResolverEarnings),
		fmt.Sprintf("%+d", r.Today.CurrentStreak),
		fmt.Sprintf("%d", r.Today.BestWinStreak),
		fmt.Sprintf("%d", r.Today.WorstLossStreak),
	)
	tbl.Append(
		fmt.Sprintf("total (%dd)", r.Total.Days),
		fmt.Sprintf("%d", r.Total.Wins),
		fmt.Sprintf("%d", r.Total.Losses),
		fmt.Sprintf("%d", r.Total.Ties),
		fmt.Sprintf("%.1f", r.Total.WinRate()),
		fmt.Sprintf("%.4f", r.Total.TotalWon),
		fmt.Sprintf("%.4f", r.Total.TotalLost),
		fmt.Sprintf("%.4f", r.Total.ResolverEarnings),
		fmt.Sprintf("%+d", r.Total.CurrentStreak),
		fmt.Sprintf("%d", r.Total.BestWinStreak),
		fmt.Sprintf("%d", r.Total.WorstLossStreak),
	)
	tbl.Render()
	fmt.Fprintf(c.out, "  Net P&L:   %.4f %s\n", r.Total.NetPnL(), c.symbol)

	if len(r.Buckets) > 0 {
		fmt.Fprintf(c.out, "\n  --- BY CONFIDENCE ---\n")
		bt := tablewriter.NewWriter(c.out)
		bt.Header("Bucket", "W", "L", "T", "Win%", "Won", "Lost")
		for _, b := range r.Buckets {
			bt.Append(
				string(b.Bucket),
				fmt.Sprintf("%d", b.Wins),
				fmt.Sprintf("%d", b.Losses),
				fmt.Sprintf("%d", b.Ties),
				fmt.Sprintf("%.1f", b.WinRate()),
				fmt.Sprintf("%.4f", b.TotalWon),
				fmt.Sprintf("%.4f", b.TotalLost),
			)
		}
		bt.Render()
	}

	var inPlay []domain.Wager
	for _, w := range r.Ours {
		if !w.Status.Terminal() {
			inPlay = append(inPlay, w)
		}
	}
	fmt.Fprintf(c.out, "\n  --- IN PLAY (%d) ---\n", len(inPlay))
	if len(inPlay) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	wt := tablewriter.NewWriter(c.out)
	wt.Header("ID", "Role", "Status", "Dir", "Stake", "Start", "Matures")
	for _, w := range inPlay {
		wt.Append(
			fmt.Sprintf("%d", w.ID),
			string(w.RoleFor(r.Account)),
			w.Status.String(),
			string(w.Direction),
			c.amount(w.Stake),
			startPrice(w),
			matures(w, r.Now),
		)
	}
	wt.Render()
}

// PrintHistory prints decisions, newest first as given.
func (c *Console) PrintHistory(decisions []domain.Decision) {
	if len(decisions) == 0 {
		fmt.Fprintln(c.out, "\n  No decisions logged yet.")
		return
	}
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Time", "Action", "Wager", "Dir", "Conf", "Price", "Reasoning")
	for _, d := range decisions {
		wager := "-"
		if d.ChallengeID != nil {
			wager = fmt.Sprintf("%d", *d.ChallengeID)
		}
		conf := "-"
		if d.Confidence != nil {
			conf = fmt.Sprintf("%.0f", *d.Confidence)
		}
		dir := string(d.Direction)
		if dir == "" {
			dir = "-"
		}
		tbl.Append(
			d.CreatedAt.UTC().Format("01-02 15:04:05"),
			string(d.Action),
			wager,
			dir,
			conf,
			fmt.Sprintf("%.2f", d.PriceAtDecision),
			truncate(d.Reasoning, 60),
		)
	}
	tbl.Render()
}

// PrintChallenges prints a snapshot of the wager table with the derived
// classification of each row.
func (c *Console) PrintChallenges(set domain.WagerSet) {
	if len(set.Wagers) == 0 {
		fmt.Fprintln(c.out, "\n  No wagers on the ledger.")
		return
	}
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("ID", "Creator", "Opponent", "Status", "Dir", "Stake", "Duration", "Start", "Class")
	for _, w := range set.Wagers {
		opp := w.Opponent
		if opp == "" {
			opp = "-"
		}
		tbl.Append(
			fmt.Sprintf("%d", w.ID),
			w.Creator,
			opp,
			w.Status.String(),
			string(w.Direction),
			c.amount(w.Stake),
			(time.Duration(w.Duration) * time.Second).String(),
			startPrice(w),
			Classify(set, w),
		)
	}
	tbl.Render()
	fmt.Fprintf(c.out, "  open %d | active %d | resolvable %d | expired %d | acceptable %d | ours %d\n",
		len(set.Open()), len(set.Active()), len(set.Resolvable()),
		len(set.Expired()), len(set.Acceptable()), len(set.Ours()))
}

// Classify labels a wager by what the bot could do with it at set.Now.
// Labels are joined with "," when several apply.
func Classify(set domain.WagerSet, w domain.Wager) string {
	var labels []string
	if w.IsResolvable(set.Now) {
		labels = append(labels, "resolvable")
	}
	if w.IsExpired(set.Now) {
		labels = append(labels, "expired")
	}
	if w.Status == domain.StatusOpen && w.Creator != set.Account && !w.IsExpired(set.Now) {
		labels = append(labels, "acceptable")
	}
	if w.RoleFor(set.Account) != domain.RoleNone {
		labels = append(labels, "ours")
	}
	if len(labels) == 0 {
		return "-"
	}
	return strings.Join(labels, ",")
}

// PrintPrice prints one oracle observation.
func (c *Console) PrintPrice(p domain.OraclePrice) {
	fmt.Fprintf(c.out, "  feed %d: %.8f", p.FeedID, p.Price)
	if !p.Timestamp.IsZero() {
		fmt.Fprintf(c.out, " (%s)", p.Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(c.out)
}

// BatchLine is one item of a resolve/expire batch.
type BatchLine struct {
	WagerID uint64
	Kind    string
	OK      bool
	Detail  string
}

// PrintBatch prints per-item outcomes followed by the succeeded/failed counts.
func (c *Console) PrintBatch(lines []BatchLine) {
	if len(lines) == 0 {
		fmt.Fprintln(c.out, "  nothing to resolve or expire")
		return
	}
	ok, failed := 0, 0
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Wager", "Kind", "Result", "Detail")
	for _, l := range lines {
		res := "FAIL"
		if l.OK {
			res = "OK"
			ok++
		} else {
			failed++
		}
		tbl.Append(fmt.Sprintf("%d", l.WagerID), l.Kind, res, truncate(l.Detail, 70))
	}
	tbl.Render()
	fmt.Fprintf(c.out, "  succeeded: %d | failed: %d\n", ok, failed)
}

func (c *Console) amount(units int64) string {
	return fmt.Sprintf("%.*f %s", c.precision, domain.UnitsToDisplay(units, c.precision), c.symbol)
}

func startPrice(w domain.Wager) string {
	if w.StartPrice == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", domain.FixedToFloat(w.StartPrice))
}

func matures(w domain.Wager, now time.Time) string {
	at := w.MaturesAt()
	if at == 0 {
		return "-"
	}
	left := time.Unix(at, 0).Sub(now).Truncate(time.Second)
	if left <= 0 {
		return "now"
	}
	return "in " + left.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
