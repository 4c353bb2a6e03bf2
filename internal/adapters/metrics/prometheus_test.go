package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/metrics"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

func TestRecorder_ServesCounters(t *testing.T) {
	r := metrics.New()
	r.TickCompleted("conservative", true)
	r.TickCompleted("conservative", false)
	r.DecisionLogged(domain.ActionSkip)
	r.ResolutionAttempted("resolve", true)
	r.OutcomeRecorded(domain.OutcomeWin)
	r.Failover("http://a", "http://b")
	r.PriceObserved(65000.5)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `battlebot_strategy_ticks_total{result="ok",strategy="conservative"} 1`)
	assert.Contains(t, out, `battlebot_strategy_ticks_total{result="error",strategy="conservative"} 1`)
	assert.Contains(t, out, `battlebot_decisions_total{action="skip"} 1`)
	assert.Contains(t, out, `battlebot_rpc_failovers_total{to="http://b"} 1`)
	assert.Contains(t, out, `battlebot_oracle_price 65000.5`)
}

func TestRecorder_Independent(t *testing.T) {
	// two recorders must not panic on duplicate registration
	a, b := metrics.New(), metrics.New()
	a.OutcomeRecorded(domain.OutcomeLoss)
	b.OutcomeRecorded(domain.OutcomeLoss)
}
