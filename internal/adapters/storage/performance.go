package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const dailyColumns = `date, wins, losses, ties, total_won, total_lost, resolver_earnings,
	current_streak, best_win_streak, worst_loss_streak`

// UpdateDaily runs a read-modify-write of one day row inside a transaction.
// A missing row starts from the streak of the latest earlier day.
func (s *SQLiteStorage) UpdateDaily(ctx context.Context, date time.Time, fn func(*domain.DailyPerformance)) (domain.DailyPerformance, error) {
	day := domain.DayOf(date)
	key := day.Format(dateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("storage.UpdateDaily: begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDaily(tx.QueryRowContext(ctx, `SELECT `+dailyColumns+` FROM daily_performance WHERE date = ?`, key))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		carried, err := priorStreak(ctx, tx, key)
		if err != nil {
			return domain.DailyPerformance{}, fmt.Errorf("storage.UpdateDaily: %w", err)
		}
		d = domain.NewDailyPerformance(day, carried)
	case err != nil:
		return domain.DailyPerformance{}, fmt.Errorf("storage.UpdateDaily: load %s: %w", key, err)
	}

	fn(&d)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_performance (`+dailyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			wins              = excluded.wins,
			losses            = excluded.losses,
			ties              = excluded.ties,
			total_won         = excluded.total_won,
			total_lost        = excluded.total_lost,
			resolver_earnings = excluded.resolver_earnings,
			current_streak    = excluded.current_streak,
			best_win_streak   = excluded.best_win_streak,
			worst_loss_streak = excluded.worst_loss_streak`,
		key, d.Wins, d.Losses, d.Ties, d.TotalWon, d.TotalLost, d.ResolverEarnings,
		d.CurrentStreak, d.BestWinStreak, d.WorstLossStreak,
	)
	if err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("storage.UpdateDaily: save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("storage.UpdateDaily: commit: %w", err)
	}
	return d, nil
}

// GetDaily returns the row for date. A missing row comes back empty, carrying
// the streak of the latest earlier day the same way UpdateDaily would seed it.
func (s *SQLiteStorage) GetDaily(ctx context.Context, date time.Time) (domain.DailyPerformance, error) {
	day := domain.DayOf(date)
	key := day.Format(dateLayout)
	d, err := scanDaily(s.db.QueryRowContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_performance WHERE date = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		carried, err := priorStreak(ctx, s.db, key)
		if err != nil {
			return domain.DailyPerformance{}, fmt.Errorf("storage.GetDaily: %w", err)
		}
		return domain.NewDailyPerformance(day, carried), nil
	}
	if err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("storage.GetDaily: %w", err)
	}
	return d, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// priorStreak returns current_streak of the latest day before key, 0 if none.
func priorStreak(ctx context.Context, q rowQuerier, key string) (int, error) {
	var carried int
	err := q.QueryRowContext(ctx,
		`SELECT current_streak FROM daily_performance WHERE date < ? ORDER BY date DESC LIMIT 1`, key,
	).Scan(&carried)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("prior streak: %w", err)
	}
	return carried, nil
}

// ListDaily returns every stored day, oldest first.
func (s *SQLiteStorage) ListDaily(ctx context.Context) ([]domain.DailyPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dailyColumns+` FROM daily_performance ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListDaily: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyPerformance
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListDaily: scan row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDaily(r rowScanner) (domain.DailyPerformance, error) {
	var d domain.DailyPerformance
	var date string
	err := r.Scan(&date, &d.Wins, &d.Losses, &d.Ties, &d.TotalWon, &d.TotalLost, &d.ResolverEarnings,
		&d.CurrentStreak, &d.BestWinStreak, &d.WorstLossStreak)
	if err != nil {
		return d, err
	}
	d.Date, err = time.Parse(dateLayout, date)
	return d, err
}

// IncrementConfidence adds one outcome to a bucket row.
func (s *SQLiteStorage) IncrementConfidence(ctx context.Context, bucket domain.ConfidenceBucket, outcome domain.Outcome, amount float64) error {
	var q string
	var args []any
	switch outcome {
	case domain.OutcomeWin:
		q = `UPDATE confidence_performance SET wins = wins + 1, total_won = total_won + ? WHERE bucket = ?`
		args = []any{amount, string(bucket)}
	case domain.OutcomeLoss:
		q = `UPDATE confidence_performance SET losses = losses + 1, total_lost = total_lost + ? WHERE bucket = ?`
		args = []any{amount, string(bucket)}
	case domain.OutcomeTie:
		q = `UPDATE confidence_performance SET ties = ties + 1 WHERE bucket = ?`
		args = []any{string(bucket)}
	default:
		return nil
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("storage.IncrementConfidence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.IncrementConfidence: unknown bucket %q", bucket)
	}
	return nil
}

// ListConfidence returns the four bucket rows in ascending confidence order.
func (s *SQLiteStorage) ListConfidence(ctx context.Context) ([]domain.ConfidencePerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, wins, losses, ties, total_won, total_lost FROM confidence_performance`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListConfidence: query: %w", err)
	}
	defer rows.Close()

	byBucket := make(map[domain.ConfidenceBucket]domain.ConfidencePerformance)
	for rows.Next() {
		var c domain.ConfidencePerformance
		var b string
		if err := rows.Scan(&b, &c.Wins, &c.Losses, &c.Ties, &c.TotalWon, &c.TotalLost); err != nil {
			return nil, fmt.Errorf("storage.ListConfidence: scan row: %w", err)
		}
		c.Bucket = domain.ConfidenceBucket(b)
		byBucket[c.Bucket] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ConfidencePerformance, 0, len(domain.Buckets))
	for _, b := range domain.Buckets {
		c, ok := byBucket[b]
		if !ok {
			c.Bucket = b
		}
		out = append(out, c)
	}
	return out, nil
}
