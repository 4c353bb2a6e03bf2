package domain

import "time"

// DecisionAction tags each row of the decision log.
type DecisionAction string

const (
	ActionAnalyzeCreate DecisionAction = "analyze_create"
	ActionCreate        DecisionAction = "create"
	ActionAccept        DecisionAction = "accept"
	ActionSkip          DecisionAction = "skip"
	ActionResolve       DecisionAction = "resolve"
)

// ConfidenceBucket stratifies decision confidence for performance analysis.
type ConfidenceBucket string

const (
	BucketLow      ConfidenceBucket = "low"
	BucketMedium   ConfidenceBucket = "medium"
	BucketHigh     ConfidenceBucket = "high"
	BucketVeryHigh ConfidenceBucket = "very_high"
)

// Buckets lists the four fixed buckets in ascending order.
var Buckets = []ConfidenceBucket{BucketLow, BucketMedium, BucketHigh, BucketVeryHigh}

// BucketFor maps a 0-100 confidence to its bucket.
func BucketFor(confidence float64) ConfidenceBucket {
	switch {
	case confidence < 60:
		return BucketLow
	case confidence < 75:
		return BucketMedium
	case confidence < 90:
		return BucketHigh
	}
	return BucketVeryHigh
}

// Decision is one append-only entry of the audit trail. Never mutated.
type Decision struct {
	ID              string
	ChallengeID     *uint64 // nil for general market analyses
	Action          DecisionAction
	Direction       Direction
	Confidence      *float64
	Reasoning       string
	PriceAtDecision float64
	CreatedAt       time.Time
}

// Bucket returns the confidence bucket, or "" when the decision has no confidence.
func (d Decision) Bucket() ConfidenceBucket {
	if d.Confidence == nil {
		return ""
	}
	return BucketFor(*d.Confidence)
}

// Float is a helper for optional confidence fields.
func Float(v float64) *float64 { return &v }

// WagerID is a helper for optional challenge ids.
func WagerID(v uint64) *uint64 { return &v }
