package breach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		existing   bool
		thresholds Thresholds
		want       Decision
	}{
		{"zero count always accepts", 0, false, Thresholds{Reject: 1}, DecisionAccept},
		{"zero count accepts for existing too", 0, true, Thresholds{Reject: 1, Warn: 1}, DecisionAccept},
		{"count at reject cutoff rejects", 1, false, Thresholds{Reject: 1}, DecisionReject},
		{"count below reject cutoff accepts", 2, false, Thresholds{Reject: 3}, DecisionAccept},
		{"count above reject cutoff rejects", 5, false, Thresholds{Reject: 3}, DecisionReject},
		{"unset thresholds default to one", 1, false, Thresholds{}, DecisionReject},
		{"huge cutoff tolerates common password", 1000000, false, Thresholds{Reject: 999999999}, DecisionAccept},
		{"existing record falls back to reject cutoff", 3, true, Thresholds{Reject: 3}, DecisionReject},
		{"existing record held to warn cutoff", 1000000, true, Thresholds{Reject: 999999999, Warn: 1}, DecisionReject},
		{"existing record below warn cutoff accepts", 1, true, Thresholds{Reject: 10, Warn: 5}, DecisionAccept},
		{"new record ignores warn cutoff", 5, false, Thresholds{Reject: 10, Warn: 5}, DecisionAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.count, tt.existing, tt.thresholds))
		})
	}
}

func TestEvaluateSignIn(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		thresholds Thresholds
		want       Decision
	}{
		{"zero count accepts", 0, Thresholds{Reject: 1}, DecisionAccept},
		{"count at warn cutoff warns", 5, Thresholds{Reject: 999, Warn: 5}, DecisionWarn},
		{"count below warn cutoff accepts", 4, Thresholds{Reject: 999, Warn: 5}, DecisionAccept},
		{"warn falls back to reject cutoff", 1, Thresholds{Reject: 1}, DecisionWarn},
		{"warn fallback below reject cutoff accepts", 3, Thresholds{Reject: 5}, DecisionAccept},
		{"unset thresholds default to one", 1, Thresholds{}, DecisionWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateSignIn(tt.count, tt.thresholds)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, DecisionReject, got, "sign-in path never rejects")
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "accept", DecisionAccept.String())
	assert.Equal(t, "warn", DecisionWarn.String())
	assert.Equal(t, "reject", DecisionReject.String())
}
