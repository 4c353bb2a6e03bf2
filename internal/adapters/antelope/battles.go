package antelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	eos "github.com/eoscanada/eos-go"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// BalanceReader reads token balances. *FailoverClient implements it.
type BalanceReader interface {
	CurrencyBalance(ctx context.Context, account, symbol, tokenContract string) ([]eos.Asset, error)
}

// BattleTableConfig locates the battle contract tables.
type BattleTableConfig struct {
	Account       string
	Contract      string
	Table         string // battles
	ConfigTable   string // config, holds the paused flag
	TokenContract string
	Symbol        string
}

// BattleTable reads battle rows and account state from the contract.
type BattleTable struct {
	rows     TableReader
	balances BalanceReader
	cfg      BattleTableConfig
}

func NewBattleTable(rows TableReader, balances BalanceReader, cfg BattleTableConfig) *BattleTable {
	if cfg.Table == "" {
		cfg.Table = "battles"
	}
	if cfg.ConfigTable == "" {
		cfg.ConfigTable = "config"
	}
	return &BattleTable{rows: rows, balances: balances, cfg: cfg}
}

type battleRow struct {
	ID         eos.Uint64 `json:"id"`
	Creator    string     `json:"creator"`
	Opponent   string     `json:"opponent"`
	Stake      eos.Asset  `json:"stake"`
	Direction  uint8      `json:"direction"`
	OracleFeed eos.Uint64 `json:"oracle_feed"`
	Duration   eos.Int64  `json:"duration"`
	StartPrice eos.Int64  `json:"start_price"`
	EndPrice   eos.Int64  `json:"end_price"`
	CreatedAt  eos.Int64  `json:"created_at"`
	StartedAt  eos.Int64  `json:"started_at"`
	ExpiresAt  eos.Int64  `json:"expires_at"`
	Status     uint8      `json:"status"`
	Winner     string     `json:"winner"`
}

func (r battleRow) toDomain(account string) (domain.Wager, error) {
	dir, err := domain.DirectionFromCode(r.Direction)
	if err != nil {
		return domain.Wager{}, err
	}
	w := domain.Wager{
		ID:         uint64(r.ID),
		Creator:    r.Creator,
		Opponent:   r.Opponent,
		Stake:      int64(r.Stake.Amount),
		Direction:  dir,
		OracleFeed: uint64(r.OracleFeed),
		Duration:   int64(r.Duration),
		StartPrice: int64(r.StartPrice),
		EndPrice:   int64(r.EndPrice),
		CreatedAt:  int64(r.CreatedAt),
		StartedAt:  int64(r.StartedAt),
		ExpiresAt:  int64(r.ExpiresAt),
		Status:     domain.WagerStatus(r.Status),
		Winner:     r.Winner,
	}
	if w.Status > domain.StatusTie {
		return domain.Wager{}, fmt.Errorf("unknown status %d", r.Status)
	}
	w.OurRole = w.RoleFor(account)
	return w, nil
}

// FetchWagers returns up to limit battles, most recent first. Rows that do not
// decode are skipped and logged.
func (b *BattleTable) FetchWagers(ctx context.Context, limit int) ([]domain.Wager, error) {
	if limit <= 0 {
		limit = 100
	}
	resp, err := b.rows.TableRows(ctx, TableQuery{
		Code:    b.cfg.Contract,
		Scope:   b.cfg.Contract,
		Table:   b.cfg.Table,
		Limit:   uint32(limit),
		Reverse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("antelope.FetchWagers: %w", err)
	}
	var rows []battleRow
	if err := resp.JSONToStructs(&rows); err != nil {
		return nil, fmt.Errorf("antelope.FetchWagers: decode rows: %w", err)
	}

	out := make([]domain.Wager, 0, len(rows))
	for _, r := range rows {
		w, err := r.toDomain(b.cfg.Account)
		if err != nil {
			slog.Warn("sync: skipping undecodable battle row", "id", uint64(r.ID), "err", err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// FetchWager reads a single battle by id.
func (b *BattleTable) FetchWager(ctx context.Context, id uint64) (domain.Wager, error) {
	key := strconv.FormatUint(id, 10)
	resp, err := b.rows.TableRows(ctx, TableQuery{
		Code:       b.cfg.Contract,
		Scope:      b.cfg.Contract,
		Table:      b.cfg.Table,
		LowerBound: key,
		UpperBound: key,
		Limit:      1,
	})
	if err != nil {
		return domain.Wager{}, fmt.Errorf("antelope.FetchWager: %w", err)
	}
	var rows []battleRow
	if err := resp.JSONToStructs(&rows); err != nil {
		return domain.Wager{}, fmt.Errorf("antelope.FetchWager: decode rows: %w", err)
	}
	if len(rows) == 0 || uint64(rows[0].ID) != id {
		return domain.Wager{}, fmt.Errorf("antelope.FetchWager: %d: %w", id, domain.ErrWagerNotFound)
	}
	w, err := rows[0].toDomain(b.cfg.Account)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("antelope.FetchWager: %d: %w", id, err)
	}
	return w, nil
}

// Balance returns the stake token balance of the account in base units.
func (b *BattleTable) Balance(ctx context.Context) (int64, error) {
	assets, err := b.balances.CurrencyBalance(ctx, b.cfg.Account, b.cfg.Symbol, b.cfg.TokenContract)
	if err != nil {
		return 0, fmt.Errorf("antelope.Balance: %w", err)
	}
	for _, a := range assets {
		if a.Symbol.Symbol == b.cfg.Symbol {
			return int64(a.Amount), nil
		}
	}
	return 0, nil
}

// Paused reads the pause flag from the contract config singleton. A missing
// row means not paused.
func (b *BattleTable) Paused(ctx context.Context) (bool, error) {
	resp, err := b.rows.TableRows(ctx, TableQuery{
		Code:  b.cfg.Contract,
		Scope: b.cfg.Contract,
		Table: b.cfg.ConfigTable,
		Limit: 1,
	})
	if err != nil {
		return false, fmt.Errorf("antelope.Paused: %w", err)
	}
	var rows []struct {
		Paused json.RawMessage `json:"paused"`
	}
	if err := resp.JSONToStructs(&rows); err != nil {
		return false, fmt.Errorf("antelope.Paused: decode rows: %w", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	return truthy(rows[0].Paused), nil
}

// truthy decodes bool flags that contracts emit as true/false or 0/1.
func truthy(raw json.RawMessage) bool {
	s := strings.ToLower(string(bytes.Trim(bytes.TrimSpace(raw), `"`)))
	return s == "true" || s == "1"
}
