package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// AppendPrice stores one oracle observation.
func (s *SQLiteStorage) AppendPrice(ctx context.Context, p domain.PricePoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_points (price, ts) VALUES (?, ?)`, p.Price, unixMilli(p.Timestamp))
	if err != nil {
		return fmt.Errorf("storage.AppendPrice: %w", err)
	}
	return nil
}

// PriceAtOrBefore returns the latest point not after ts.
func (s *SQLiteStorage) PriceAtOrBefore(ctx context.Context, ts time.Time) (domain.PricePoint, bool, error) {
	var p domain.PricePoint
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT price, ts FROM price_points WHERE ts <= ? ORDER BY ts DESC, id DESC LIMIT 1`, unixMilli(ts),
	).Scan(&p.Price, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PricePoint{}, false, nil
	}
	if err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("storage.PriceAtOrBefore: %w", err)
	}
	p.Timestamp = fromMilli(ms)
	return p, true, nil
}

// RecentPrices returns up to n points, oldest first.
func (s *SQLiteStorage) RecentPrices(ctx context.Context, n int) ([]domain.PricePoint, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT price, ts FROM price_points ORDER BY ts DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentPrices: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var ms int64
		if err := rows.Scan(&p.Price, &ms); err != nil {
			return nil, fmt.Errorf("storage.RecentPrices: scan row: %w", err)
		}
		p.Timestamp = fromMilli(ms)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
