package ports

import (
	"context"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// LedgerExecutor signs and submits the battle contract operations.
// Each call is one transaction; create and accept carry the stake transfer in
// the same transaction as the contract action.
type LedgerExecutor interface {
	CreateWager(ctx context.Context, req domain.CreateRequest) (domain.Receipt, error)
	AcceptWager(ctx context.Context, w domain.Wager) (domain.Receipt, error)
	CancelWager(ctx context.Context, wagerID uint64) (domain.Receipt, error)
	ExpireWager(ctx context.Context, wagerID uint64) (domain.Receipt, error)
	ResolveWager(ctx context.Context, wagerID uint64, endPrice int64) (domain.Receipt, error)

	// DryRun reports whether receipts are synthetic.
	DryRun() bool
}

// WagerSource reads battle rows from the ledger.
type WagerSource interface {
	// FetchWagers returns up to limit rows, most recent first.
	FetchWagers(ctx context.Context, limit int) ([]domain.Wager, error)
	// FetchWager returns one row or domain.ErrWagerNotFound.
	FetchWager(ctx context.Context, id uint64) (domain.Wager, error)
}

// PriceOracle reads aggregated prices from the on-ledger oracle.
type PriceOracle interface {
	Price(ctx context.Context, feedID uint64) (domain.OraclePrice, error)
}

// AccountReader reads account-level state from the ledger.
type AccountReader interface {
	// Balance returns the stake token balance of the configured account in base units.
	Balance(ctx context.Context) (int64, error)
	// Paused reports the contract-wide pause flag.
	Paused(ctx context.Context) (bool, error)
}
