package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Completer sends one system+user exchange to a chat model and returns the
// text of the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config selects and configures the model provider.
type Config struct {
	Provider string // openai | anthropic
	APIKey   string
	Model    string
	BaseURL  string
}

// Predictor implements ports.Predictor on top of a chat model.
type Predictor struct {
	llm Completer
}

// New wraps an existing completer.
func New(llm Completer) *Predictor {
	return &Predictor{llm: llm}
}

// NewFromConfig builds the completer for cfg.Provider.
func NewFromConfig(cfg Config) (*Predictor, error) {
	switch cfg.Provider {
	case "openai":
		return New(NewOpenAI(cfg)), nil
	case "anthropic":
		return New(NewAnthropic(cfg)), nil
	}
	return nil, fmt.Errorf("predictor.NewFromConfig: unknown provider %q", cfg.Provider)
}

type predictionJSON struct {
	Direction       *string  `json:"direction"`
	Confidence      *float64 `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	DurationSeconds int64    `json:"durationSeconds"`
	StakePercent    float64  `json:"stakePercent"`
}

type judgmentJSON struct {
	Accept     *bool    `json:"accept"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Predict asks for a creation recommendation.
func (p *Predictor) Predict(ctx context.Context, mc domain.MarketContext) (domain.Prediction, error) {
	reply, err := p.llm.Complete(ctx, systemPrompt, predictPrompt(mc))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predictor.Predict: %w", err)
	}
	pred, err := ParsePrediction(reply)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predictor.Predict: %w", err)
	}
	return pred, nil
}

// EvaluateAccept asks whether taking the opposite side of w is favourable.
func (p *Predictor) EvaluateAccept(ctx context.Context, mc domain.MarketContext, w domain.Wager) (domain.AcceptJudgment, error) {
	reply, err := p.llm.Complete(ctx, systemPrompt, acceptPrompt(mc, w))
	if err != nil {
		return domain.AcceptJudgment{}, fmt.Errorf("predictor.EvaluateAccept: %w", err)
	}
	j, err := ParseJudgment(reply)
	if err != nil {
		return domain.AcceptJudgment{}, fmt.Errorf("predictor.EvaluateAccept: %w", err)
	}
	return j, nil
}

// ParsePrediction decodes and validates a creation reply. Missing or invalid
// direction and confidence are hard errors.
func ParsePrediction(reply string) (domain.Prediction, error) {
	var raw predictionJSON
	if err := decodeObject(reply, &raw); err != nil {
		return domain.Prediction{}, err
	}
	if raw.Direction == nil {
		return domain.Prediction{}, &domain.ValidationError{Field: "direction", Reason: "missing"}
	}
	if raw.Confidence == nil {
		return domain.Prediction{}, &domain.ValidationError{Field: "confidence", Reason: "missing"}
	}
	dir, err := domain.ParseDirection(*raw.Direction)
	if err != nil {
		return domain.Prediction{}, &domain.ValidationError{Field: "direction", Reason: err.Error()}
	}
	pred := domain.Prediction{
		Direction:       dir,
		Confidence:      *raw.Confidence,
		Reasoning:       strings.TrimSpace(raw.Reasoning),
		DurationSeconds: raw.DurationSeconds,
		StakePercent:    raw.StakePercent,
	}
	if err := pred.Validate(); err != nil {
		return domain.Prediction{}, err
	}
	return pred, nil
}

// ParseJudgment decodes and validates an acceptance reply.
func ParseJudgment(reply string) (domain.AcceptJudgment, error) {
	var raw judgmentJSON
	if err := decodeObject(reply, &raw); err != nil {
		return domain.AcceptJudgment{}, err
	}
	if raw.Accept == nil {
		return domain.AcceptJudgment{}, &domain.ValidationError{Field: "accept", Reason: "missing"}
	}
	if raw.Confidence == nil {
		return domain.AcceptJudgment{}, &domain.ValidationError{Field: "confidence", Reason: "missing"}
	}
	j := domain.AcceptJudgment{Accept: *raw.Accept, Confidence: *raw.Confidence, Reasoning: strings.TrimSpace(raw.Reasoning)}
	if err := j.Validate(); err != nil {
		return domain.AcceptJudgment{}, err
	}
	return j, nil
}

// decodeObject extracts the outermost JSON object from a reply that may be
// wrapped in prose or a code fence.
func decodeObject(reply string, out any) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return &domain.ValidationError{Field: "reply", Reason: "no JSON object found"}
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), out); err != nil {
		return &domain.ValidationError{Field: "reply", Reason: err.Error()}
	}
	return nil
}
