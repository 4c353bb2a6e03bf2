package antelope

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	eos "github.com/eoscanada/eos-go"
	"github.com/eoscanada/eos-go/token"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const (
	actCreate  = "create"
	actAccept  = "accept"
	actCancel  = "cancel"
	actExpire  = "expire"
	actResolve = "resolve"
)

// Transactor submits one transaction. *FailoverClient implements it.
type Transactor interface {
	Transact(ctx context.Context, actions []*eos.Action, expire time.Duration) (domain.Receipt, error)
}

// ExecutorConfig identifies who signs and which contracts are called.
type ExecutorConfig struct {
	Account       string
	Permission    string
	Contract      string
	TokenContract string
	Symbol        eos.Symbol
	Expire        time.Duration
	DryRun        bool
}

// Executor builds the battle contract action bundles. Submission errors are
// returned as-is; retry and failover live in the Transactor.
type Executor struct {
	tx  Transactor
	cfg ExecutorConfig
	now func() time.Time
}

// NewExecutor creates an executor. tx may be nil in dry-run mode.
func NewExecutor(tx Transactor, cfg ExecutorConfig) *Executor {
	if cfg.Permission == "" {
		cfg.Permission = "active"
	}
	if cfg.Expire <= 0 {
		cfg.Expire = 30 * time.Second
	}
	return &Executor{tx: tx, cfg: cfg, now: time.Now}
}

func (e *Executor) DryRun() bool { return e.cfg.DryRun }

type createData struct {
	Creator    eos.AccountName `json:"creator"`
	Stake      eos.Asset       `json:"stake"`
	Direction  uint8           `json:"direction"`
	OracleFeed uint64          `json:"oracle_feed"`
	Duration   uint32          `json:"duration"`
}

type acceptData struct {
	Opponent eos.AccountName `json:"opponent"`
	BattleID uint64          `json:"battle_id"`
}

type cancelData struct {
	Creator  eos.AccountName `json:"creator"`
	BattleID uint64          `json:"battle_id"`
}

type expireData struct {
	Caller   eos.AccountName `json:"caller"`
	BattleID uint64          `json:"battle_id"`
}

type resolveData struct {
	Resolver eos.AccountName `json:"resolver"`
	BattleID uint64          `json:"battle_id"`
	EndPrice int64           `json:"end_price"`
}

// CreateWager transfers the stake to the contract and opens a battle.
func (e *Executor) CreateWager(ctx context.Context, req domain.CreateRequest) (domain.Receipt, error) {
	if req.Stake <= 0 {
		return domain.Receipt{}, fmt.Errorf("antelope.CreateWager: non-positive stake %d", req.Stake)
	}
	stake := e.asset(req.Stake)
	actions := []*eos.Action{
		e.transfer(stake, "create"),
		e.action(actCreate, createData{
			Creator:    eos.AN(e.cfg.Account),
			Stake:      stake,
			Direction:  req.Direction.Code(),
			OracleFeed: req.OracleFeed,
			Duration:   uint32(req.Duration),
		}),
	}
	return e.submit(ctx, actCreate, actions)
}

// AcceptWager transfers the matching stake and takes the opposite side.
func (e *Executor) AcceptWager(ctx context.Context, w domain.Wager) (domain.Receipt, error) {
	stake := e.asset(w.Stake)
	actions := []*eos.Action{
		e.transfer(stake, fmt.Sprintf("accept:%d", w.ID)),
		e.action(actAccept, acceptData{Opponent: eos.AN(e.cfg.Account), BattleID: w.ID}),
	}
	return e.submit(ctx, actAccept, actions)
}

// CancelWager withdraws an unaccepted battle we created.
func (e *Executor) CancelWager(ctx context.Context, wagerID uint64) (domain.Receipt, error) {
	return e.submit(ctx, actCancel, []*eos.Action{
		e.action(actCancel, cancelData{Creator: eos.AN(e.cfg.Account), BattleID: wagerID}),
	})
}

// ExpireWager closes someone else's battle that passed its acceptance window.
func (e *Executor) ExpireWager(ctx context.Context, wagerID uint64) (domain.Receipt, error) {
	return e.submit(ctx, actExpire, []*eos.Action{
		e.action(actExpire, expireData{Caller: eos.AN(e.cfg.Account), BattleID: wagerID}),
	})
}

// ResolveWager settles a matured battle at endPrice (fixed-point).
func (e *Executor) ResolveWager(ctx context.Context, wagerID uint64, endPrice int64) (domain.Receipt, error) {
	return e.submit(ctx, actResolve, []*eos.Action{
		e.action(actResolve, resolveData{Resolver: eos.AN(e.cfg.Account), BattleID: wagerID, EndPrice: endPrice}),
	})
}

func (e *Executor) submit(ctx context.Context, name string, actions []*eos.Action) (domain.Receipt, error) {
	if e.cfg.DryRun {
		now := e.now().UTC()
		r := domain.Receipt{
			TransactionID: fmt.Sprintf("%064x", now.UnixNano()),
			SubmittedAt:   now,
		}
		slog.Info("executor: dry-run", "action", name, "actions", len(actions), "tx", r.TransactionID)
		return r, nil
	}
	if e.tx == nil {
		return domain.Receipt{}, fmt.Errorf("antelope.%s: no transactor configured", name)
	}
	r, err := e.tx.Transact(ctx, actions, e.cfg.Expire)
	if err != nil {
		return domain.Receipt{}, err
	}
	slog.Info("executor: submitted", "action", name, "tx", r.TransactionID, "block", r.BlockNum)
	return r, nil
}

func (e *Executor) auth() []eos.PermissionLevel {
	return []eos.PermissionLevel{{Actor: eos.AN(e.cfg.Account), Permission: eos.PN(e.cfg.Permission)}}
}

func (e *Executor) action(name string, data any) *eos.Action {
	return &eos.Action{
		Account:       eos.AN(e.cfg.Contract),
		Name:          eos.ActN(name),
		Authorization: e.auth(),
		ActionData:    eos.NewActionData(data),
	}
}

func (e *Executor) transfer(qty eos.Asset, memo string) *eos.Action {
	return &eos.Action{
		Account:       eos.AN(e.cfg.TokenContract),
		Name:          eos.ActN("transfer"),
		Authorization: e.auth(),
		ActionData: eos.NewActionData(token.Transfer{
			From:     eos.AN(e.cfg.Account),
			To:       eos.AN(e.cfg.Contract),
			Quantity: qty,
			Memo:     memo,
		}),
	}
}

func (e *Executor) asset(units int64) eos.Asset {
	return eos.Asset{Amount: eos.Int64(units), Symbol: e.cfg.Symbol}
}
