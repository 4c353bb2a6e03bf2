package antelope

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	eos "github.com/eoscanada/eos-go"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultHTTPTimeout  = 15 * time.Second
)

// FailoverClient wraps one eos-go API per endpoint. Every call is retried up
// to len(endpoints) times with exponential backoff, rotating to the next
// endpoint before each retry. The current endpoint is sticky across calls.
type FailoverClient struct {
	endpoints []string
	apis      []*eos.API

	mu        sync.Mutex
	current   int
	rotations int

	initialDelay time.Duration
	maxDelay     time.Duration
	onFailover   func(from, to string)
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a FailoverClient.
type Option func(*FailoverClient)

// WithBackoff overrides the retry delays.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *FailoverClient) {
		c.initialDelay = initial
		c.maxDelay = max
	}
}

// WithSleep replaces the backoff sleep. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *FailoverClient) { c.sleep = fn }
}

// WithFailoverHook is called after each rotation.
func WithFailoverHook(fn func(from, to string)) Option {
	return func(c *FailoverClient) { c.onFailover = fn }
}

// WithSigner installs a signer on every endpoint API.
func WithSigner(s eos.Signer) Option {
	return func(c *FailoverClient) {
		for _, api := range c.apis {
			api.SetSigner(s)
		}
	}
}

// NewFailoverClient builds a client over the given chain API base URLs.
func NewFailoverClient(endpoints []string, opts ...Option) (*FailoverClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("antelope.NewFailoverClient: no endpoints")
	}
	c := &FailoverClient{
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		sleep:        sleepCtx,
	}
	for _, ep := range endpoints {
		ep = strings.TrimRight(strings.TrimSpace(ep), "/")
		api := eos.New(ep)
		api.HttpClient = &http.Client{Timeout: defaultHTTPTimeout}
		c.endpoints = append(c.endpoints, ep)
		c.apis = append(c.apis, api)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewKeySigner returns an in-memory signer holding one private key.
func NewKeySigner(privateKey string) (*eos.KeyBag, error) {
	kb := eos.NewKeyBag()
	if err := kb.Add(privateKey); err != nil {
		return nil, fmt.Errorf("antelope.NewKeySigner: %w", err)
	}
	return kb, nil
}

// CurrentEndpoint returns the endpoint the next call will use.
func (c *FailoverClient) CurrentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.current]
}

// Rotations returns how many times the client has failed over.
func (c *FailoverClient) Rotations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotations
}

func (c *FailoverClient) pick() (*eos.API, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apis[c.current], c.endpoints[c.current]
}

// rotate advances to the next endpoint unless another caller already did.
func (c *FailoverClient) rotate(failed string) {
	c.mu.Lock()
	if c.endpoints[c.current] != failed {
		c.mu.Unlock()
		return
	}
	c.current = (c.current + 1) % len(c.endpoints)
	c.rotations++
	next := c.endpoints[c.current]
	c.mu.Unlock()

	slog.Warn("rpc: failing over", "from", failed, "to", next)
	if c.onFailover != nil {
		c.onFailover(failed, next)
	}
}

// do runs fn with retry and failover. The last error is wrapped in a
// *domain.TransportError.
func (c *FailoverClient) do(ctx context.Context, op string, fn func(ctx context.Context, api *eos.API) error) error {
	attempts := len(c.apis)
	delay := c.initialDelay

	var lastErr error
	var lastEndpoint string
	for attempt := 1; attempt <= attempts; attempt++ {
		api, endpoint := c.pick()
		err := fn(ctx, api)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("rpc %s: %w", op, ctx.Err())
		}
		lastErr, lastEndpoint = err, endpoint
		slog.Debug("rpc: call failed", "op", op, "endpoint", endpoint, "attempt", attempt, "err", err)

		if attempt == attempts {
			break
		}
		c.rotate(endpoint)
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("rpc %s: %w", op, err)
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
	return &domain.TransportError{Endpoint: lastEndpoint, Attempts: attempts, Err: fmt.Errorf("%s: %w", op, lastErr)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TableQuery selects rows of one contract table.
type TableQuery struct {
	Code       string
	Scope      string
	Table      string
	LowerBound string
	UpperBound string
	Limit      uint32
	Reverse    bool
}

// TableRows reads rows as JSON.
func (c *FailoverClient) TableRows(ctx context.Context, q TableQuery) (*eos.GetTableRowsResp, error) {
	var out *eos.GetTableRowsResp
	err := c.do(ctx, "get_table_rows", func(ctx context.Context, api *eos.API) error {
		resp, err := api.GetTableRows(ctx, eos.GetTableRowsRequest{
			Code:       q.Code,
			Scope:      q.Scope,
			Table:      q.Table,
			LowerBound: q.LowerBound,
			UpperBound: q.UpperBound,
			Limit:      q.Limit,
			Reverse:    q.Reverse,
			JSON:       true,
		})
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrencyBalance reads the token balances of account for symbol.
func (c *FailoverClient) CurrencyBalance(ctx context.Context, account, symbol, tokenContract string) ([]eos.Asset, error) {
	var out []eos.Asset
	err := c.do(ctx, "get_currency_balance", func(ctx context.Context, api *eos.API) error {
		assets, err := api.GetCurrencyBalance(ctx, eos.AN(account), symbol, eos.AN(tokenContract))
		if err != nil {
			return err
		}
		out = assets
		return nil
	})
	return out, err
}

// Transact builds, signs and pushes one transaction holding actions.
// The transaction is signed once; retries push the same packed bytes so a
// retry after an ambiguous failure cannot execute twice.
func (c *FailoverClient) Transact(ctx context.Context, actions []*eos.Action, expire time.Duration) (domain.Receipt, error) {
	opts := &eos.TxOptions{}
	err := c.do(ctx, "get_info", func(ctx context.Context, api *eos.API) error {
		return opts.FillFromChain(ctx, api)
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	tx := eos.NewTransaction(actions, opts)
	tx.SetExpiration(expire)

	var packed *eos.PackedTransaction
	err = c.do(ctx, "sign", func(ctx context.Context, api *eos.API) error {
		_, p, err := api.SignTransaction(ctx, tx, opts.ChainID, opts.Compress)
		if err != nil {
			return err
		}
		packed = p
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	var resp *eos.PushTransactionFullResp
	err = c.do(ctx, "push_transaction", func(ctx context.Context, api *eos.API) error {
		r, err := api.PushTransaction(ctx, packed)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}

	return domain.Receipt{
		TransactionID: resp.TransactionID,
		BlockNum:      resp.BlockNum,
		SubmittedAt:   time.Now().UTC(),
	}, nil
}
