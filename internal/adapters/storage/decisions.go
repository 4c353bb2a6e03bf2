package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// createMatchWindow bounds how far a create decision may be from the on-chain
// created_at of the wager it opened.
const createMatchWindow = 5 * time.Minute

// AppendDecision inserts one decision row. Rows are never updated.
func (s *SQLiteStorage) AppendDecision(ctx context.Context, d domain.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions
			(id, challenge_id, action, direction, confidence, confidence_bucket,
			 reasoning, price_at_decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, nullUint(d.ChallengeID), string(d.Action), string(d.Direction), nullFloat(d.Confidence),
		nullBucket(d), d.Reasoning, d.PriceAtDecision, unixMilli(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.AppendDecision: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest decisions first.
func (s *SQLiteStorage) RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, action, direction, confidence, reasoning, price_at_decision, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentDecisions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var challenge sql.NullInt64
		var conf sql.NullFloat64
		var action, dir string
		var created int64
		if err := rows.Scan(&d.ID, &challenge, &action, &dir, &conf, &d.Reasoning, &d.PriceAtDecision, &created); err != nil {
			return nil, fmt.Errorf("storage.RecentDecisions: scan row: %w", err)
		}
		d.Action = domain.DecisionAction(action)
		d.Direction = domain.Direction(dir)
		d.CreatedAt = fromMilli(created)
		if challenge.Valid {
			d.ChallengeID = domain.WagerID(uint64(challenge.Int64))
		}
		if conf.Valid {
			d.Confidence = domain.Float(conf.Float64)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DecisionConfidence finds the decision that opened our side of w. Accepts
// carry the wager id; creates are matched on direction and time.
func (s *SQLiteStorage) DecisionConfidence(ctx context.Context, w domain.Wager) (*float64, error) {
	var q string
	var args []any
	switch w.OurRole {
	case domain.RoleOpponent:
		q = `SELECT confidence FROM decisions
			WHERE action = ? AND challenge_id = ? AND confidence IS NOT NULL
			ORDER BY created_at DESC LIMIT 1`
		args = []any{string(domain.ActionAccept), int64(w.ID)}
	case domain.RoleCreator:
		created := time.Unix(w.CreatedAt, 0)
		q = `SELECT confidence FROM decisions
			WHERE action = ? AND direction = ? AND confidence IS NOT NULL
			  AND (challenge_id = ? OR (challenge_id IS NULL AND created_at BETWEEN ? AND ?))
			ORDER BY ABS(created_at - ?) ASC LIMIT 1`
		args = []any{
			string(domain.ActionCreate), string(w.Direction), int64(w.ID),
			unixMilli(created.Add(-createMatchWindow)), unixMilli(created.Add(createMatchWindow)),
			unixMilli(created),
		}
	default:
		return nil, nil
	}

	var conf float64
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&conf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.DecisionConfidence: %d: %w", w.ID, err)
	}
	return &conf, nil
}

// LastDecisionAt returns when action was last logged, or the zero time.
func (s *SQLiteStorage) LastDecisionAt(ctx context.Context, action domain.DecisionAction) (time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM decisions WHERE action = ?`, string(action)).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage.LastDecisionAt: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMilli(ms.Int64), nil
}
