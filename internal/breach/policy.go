// Package breach decides whether a candidate password that appears in known
// breach corpora may be used. The policy is pure threshold arithmetic; the
// Checker wires it into the account validation lifecycle.
package breach

// Decision is the outcome of a policy evaluation.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionWarn
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionWarn:
		return "warn"
	case DecisionReject:
		return "reject"
	}
	return "accept"
}

// DefaultRejectThreshold is the number of corpus appearances that blocks a
// password when no threshold is configured.
const DefaultRejectThreshold = 1

// Thresholds holds the occurrence-count cutoffs. Reject is the blocking
// cutoff for new records. Warn, when set, is the cutoff applied to records
// that already exist and to post-sign-in probing. Zero means unset.
type Thresholds struct {
	Reject int
	Warn   int
}

// normalized applies defaults: Reject falls back to DefaultRejectThreshold
// and Warn falls back to Reject.
func (t Thresholds) normalized() Thresholds {
	if t.Reject <= 0 {
		t.Reject = DefaultRejectThreshold
	}
	if t.Warn <= 0 {
		t.Warn = t.Reject
	}
	return t
}

// Evaluate applies the blocking policy. A count of zero always accepts.
// Existing records are held to the warn cutoff so that a user whose password
// is already compromised cannot pick another known-bad one; the cutoff falls
// back to the reject cutoff when no warn threshold is configured.
func Evaluate(count int, existing bool, t Thresholds) Decision {
	if count <= 0 {
		return DecisionAccept
	}
	t = t.normalized()
	cutoff := t.Reject
	if existing {
		cutoff = t.Warn
	}
	if count >= cutoff {
		return DecisionReject
	}
	return DecisionAccept
}

// EvaluateSignIn applies the non-blocking post-authentication policy: the
// warn cutoff, falling back to reject, regardless of record state. It never
// returns DecisionReject.
func EvaluateSignIn(count int, t Thresholds) Decision {
	if count <= 0 {
		return DecisionAccept
	}
	t = t.normalized()
	if count >= t.Warn {
		return DecisionWarn
	}
	return DecisionAccept
}
