package predictor_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/predictor"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

type fakeLLM struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func sampleContext() domain.MarketContext {
	now := time.Unix(1_760_000_000, 0)
	return domain.MarketContext{
		CurrentPrice: 65000,
		PriceHistory: []domain.PricePoint{{Price: 64900, Timestamp: now.Add(-time.Hour)}, {Price: 65000, Timestamp: now}},
		Change1h:     domain.Float(0.15),
		Volatility:   0.4,
		Indicators:   &domain.Indicators{RSI14: 61},
		Performance:  domain.TotalPerformance{Wins: 3, Losses: 1},
	}
}

func TestParsePrediction(t *testing.T) {
	reply := "Here you go:\n```json\n{\"direction\":\"up\",\"confidence\":82.5,\"reasoning\":\" breakout \",\"durationSeconds\":3600,\"stakePercent\":40}\n```"
	p, err := predictor.ParsePrediction(reply)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionUp, p.Direction)
	assert.Equal(t, 82.5, p.Confidence)
	assert.Equal(t, "breakout", p.Reasoning)
	assert.Equal(t, int64(3600), p.DurationSeconds)
	assert.Equal(t, 40.0, p.StakePercent)
}

func TestParsePrediction_Malformed(t *testing.T) {
	cases := map[string]string{
		"no json":            "I think it goes up",
		"missing direction":  `{"confidence":80}`,
		"invalid direction":  `{"direction":"SIDEWAYS","confidence":80}`,
		"missing confidence": `{"direction":"UP"}`,
		"confidence > 100":   `{"direction":"UP","confidence":120}`,
		"confidence < 0":     `{"direction":"DOWN","confidence":-1}`,
		"broken json":        `{"direction":"UP",`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := predictor.ParsePrediction(reply)
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestParseJudgment(t *testing.T) {
	j, err := predictor.ParseJudgment(`{"accept":true,"confidence":77,"reasoning":"overextended"}`)
	require.NoError(t, err)
	assert.True(t, j.Accept)
	assert.Equal(t, 77.0, j.Confidence)

	_, err = predictor.ParseJudgment(`{"confidence":77}`)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestPredictor_PromptCarriesContext(t *testing.T) {
	llm := &fakeLLM{reply: `{"direction":"NEUTRAL","confidence":50}`}
	p := predictor.New(llm)

	pred, err := p.Predict(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionNeutral, pred.Direction)
	assert.Contains(t, llm.user, "Current price: 65000.00")
	assert.Contains(t, llm.user, "Change 1h: +0.15%")
	assert.Contains(t, llm.user, "RSI14 61.0")
	assert.Contains(t, llm.user, "3W/1L/0T")

	_, err = p.EvaluateAccept(context.Background(), sampleContext(), domain.Wager{ID: 5, Creator: "alice", Direction: domain.DirectionUp, Duration: 600, Stake: 10})
	require.Error(t, err, "creation-shaped reply is not a judgment")
	assert.Contains(t, llm.user, "Accepting means betting DOWN")
}

func TestPredictor_CompleterErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := predictor.New(&fakeLLM{err: boom}).Predict(context.Background(), sampleContext())
	assert.ErrorIs(t, err, boom)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	_, err := predictor.NewFromConfig(predictor.Config{Provider: "llama"})
	assert.Error(t, err)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req["model"])
		assert.Len(t, req["messages"], 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"accept\":false,\"confidence\":40}"}}]}`))
	}))
	defer srv.Close()

	c := predictor.NewOpenAI(predictor.Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL}, openaiopt.WithMaxRetries(0))
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"accept":false,"confidence":40}`, out)
}

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","model":"test-model",
			"content":[{"type":"text","text":"{\"direction\":\"DOWN\","},{"type":"text","text":"\"confidence\":70}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c := predictor.NewAnthropic(predictor.Config{APIKey: "ak-test", Model: "test-model", BaseURL: srv.URL}, anthropicopt.WithMaxRetries(0))
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)

	p, err := predictor.ParsePrediction(out)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, p.Direction)
}
