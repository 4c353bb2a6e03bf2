package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

const wagerColumns = `id, creator, opponent, stake, direction, oracle_feed, duration,
	start_price, end_price, created_at, started_at, expires_at, status, winner, our_role`

// UpsertWager inserts or refreshes the mirror row. outcome_recorded is owned
// by the settlement path and is never overwritten here.
func (s *SQLiteStorage) UpsertWager(ctx context.Context, w domain.Wager) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wagers (`+wagerColumns+`, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			creator     = excluded.creator,
			opponent    = excluded.opponent,
			stake       = excluded.stake,
			direction   = excluded.direction,
			oracle_feed = excluded.oracle_feed,
			duration    = excluded.duration,
			start_price = excluded.start_price,
			end_price   = excluded.end_price,
			created_at  = excluded.created_at,
			started_at  = excluded.started_at,
			expires_at  = excluded.expires_at,
			status      = excluded.status,
			winner      = excluded.winner,
			our_role    = excluded.our_role,
			synced_at   = excluded.synced_at`,
		int64(w.ID), w.Creator, w.Opponent, w.Stake, string(w.Direction), int64(w.OracleFeed), w.Duration,
		w.StartPrice, w.EndPrice, w.CreatedAt, w.StartedAt, w.ExpiresAt, int(w.Status), w.Winner, string(w.OurRole),
		unixMilli(s.now()),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertWager: %d: %w", w.ID, err)
	}
	return nil
}

// GetWager returns the mirror row or domain.ErrWagerNotFound.
func (s *SQLiteStorage) GetWager(ctx context.Context, id uint64) (domain.Wager, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id = ?`, int64(id))
	w, err := scanWager(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wager{}, fmt.Errorf("storage.GetWager: %d: %w", id, domain.ErrWagerNotFound)
	}
	if err != nil {
		return domain.Wager{}, fmt.Errorf("storage.GetWager: %d: %w", id, err)
	}
	return w, nil
}

// ListWagers returns mirror rows matching f, newest id first.
func (s *SQLiteStorage) ListWagers(ctx context.Context, f ports.WagerFilter) ([]domain.Wager, error) {
	var where []string
	var args []any
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, int(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.Account != "" {
		where = append(where, "(creator = ? OR opponent = ?)")
		args = append(args, f.Account, f.Account)
	}

	q := `SELECT ` + wagerColumns + ` FROM wagers`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryWagers(ctx, "ListWagers", q, args...)
}

// UnsettledWagers returns our resolved or tied wagers not yet accounted.
func (s *SQLiteStorage) UnsettledWagers(ctx context.Context) ([]domain.Wager, error) {
	return s.queryWagers(ctx, "UnsettledWagers", `
		SELECT `+wagerColumns+` FROM wagers
		WHERE our_role != '' AND outcome_recorded = 0 AND status IN (?, ?)
		ORDER BY id ASC`,
		int(domain.StatusResolved), int(domain.StatusTie),
	)
}

// MarkOutcomeRecorded is a conditional flip: only the caller that changes the
// row from 0 to 1 gets true.
func (s *SQLiteStorage) MarkOutcomeRecorded(ctx context.Context, id uint64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE wagers SET outcome_recorded = 1 WHERE id = ? AND outcome_recorded = 0`, int64(id))
	if err != nil {
		return false, fmt.Errorf("storage.MarkOutcomeRecorded: %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.MarkOutcomeRecorded: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStorage) queryWagers(ctx context.Context, op, q string, args ...any) ([]domain.Wager, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.%s: query: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.%s: scan row: %w", op, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(r rowScanner) (domain.Wager, error) {
	var w domain.Wager
	var id, feed int64
	var dir, role string
	var status int
	err := r.Scan(&id, &w.Creator, &w.Opponent, &w.Stake, &dir, &feed, &w.Duration,
		&w.StartPrice, &w.EndPrice, &w.CreatedAt, &w.StartedAt, &w.ExpiresAt, &status, &w.Winner, &role)
	if err != nil {
		return w, err
	}
	w.ID = uint64(id)
	w.OracleFeed = uint64(feed)
	w.Direction = domain.Direction(dir)
	w.Status = domain.WagerStatus(status)
	w.OurRole = domain.Role(role)
	return w, nil
}
