package antelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	eos "github.com/eoscanada/eos-go"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// TableReader reads contract table rows. *FailoverClient implements it.
type TableReader interface {
	TableRows(ctx context.Context, q TableQuery) (*eos.GetTableRowsResp, error)
}

// OracleReader reads aggregated feed values from the oracle table.
type OracleReader struct {
	rows     TableReader
	contract string
	table    string
	now      func() time.Time
}

func NewOracleReader(rows TableReader, contract, table string) *OracleReader {
	return &OracleReader{rows: rows, contract: contract, table: table, now: time.Now}
}

type oracleRow struct {
	ID        eos.Uint64 `json:"id"`
	Aggregate *struct {
		DDouble json.RawMessage `json:"d_double"`
	} `json:"aggregate"`
	Timestamp string `json:"timestamp"`
}

// Price returns the aggregated value of feedID.
func (o *OracleReader) Price(ctx context.Context, feedID uint64) (domain.OraclePrice, error) {
	id := strconv.FormatUint(feedID, 10)
	resp, err := o.rows.TableRows(ctx, TableQuery{
		Code:       o.contract,
		Scope:      o.contract,
		Table:      o.table,
		LowerBound: id,
		UpperBound: id,
		Limit:      1,
	})
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("antelope.Price: %w", err)
	}

	var rows []oracleRow
	if err := resp.JSONToStructs(&rows); err != nil {
		return domain.OraclePrice{}, fmt.Errorf("antelope.Price: decode rows: %w", err)
	}
	if len(rows) == 0 || uint64(rows[0].ID) != feedID {
		return domain.OraclePrice{}, fmt.Errorf("antelope.Price: feed %d: %w", feedID, domain.ErrFeedNotFound)
	}

	row := rows[0]
	if row.Aggregate == nil {
		return domain.OraclePrice{}, fmt.Errorf("antelope.Price: feed %d: %w", feedID, domain.ErrMissingAggregate)
	}
	price, ok := parseNumber(row.Aggregate.DDouble)
	if !ok {
		return domain.OraclePrice{}, fmt.Errorf("antelope.Price: feed %d: %w", feedID, domain.ErrMissingAggregate)
	}

	return domain.OraclePrice{
		FeedID:    feedID,
		Price:     price,
		Timestamp: parseChainTime(row.Timestamp, o.now()),
	}, nil
}

// parseNumber accepts a JSON number or a quoted number. Null, empty and
// non-positive values are reported as absent.
func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(bytes.Trim(raw, `"`))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseChainTime parses the time_point formats nodeos emits.
func parseChainTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}
