package breach

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/pkg/hibp"
	"github.com/praxisdev/identity-api/pkg/metrics"
)

// Field error identifiers attached to a record on rejection. Human-readable
// text for KindPwnedPassword is rendered at the transport edge.
const (
	FieldPassword     = "password"
	KindPwnedPassword = "pwned_password"
)

// Outcome is the terminal state of a single check attempt.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeQuerying Outcome = "querying"
	OutcomeAccepted Outcome = "accepted"
	OutcomeWarned   Outcome = "warned"
	OutcomeRejected Outcome = "rejected"
	// OutcomeErrored means the lookup failed and the password was accepted
	// without a verdict (fail-open).
	OutcomeErrored Outcome = "errored_accepted"
)

// Result is the per-attempt state of a breach check. It is reset before
// every validation attempt and is never persisted.
type Result struct {
	Count     int       `json:"count"`
	CheckedAt time.Time `json:"checked_at"`
	Erred     bool      `json:"erred"`
	Outcome   Outcome   `json:"outcome"`
}

// Flagged reports whether this attempt concluded the password is breached.
func (r *Result) Flagged() bool {
	return r.Outcome == OutcomeRejected || r.Outcome == OutcomeWarned
}

func (r *Result) reset() {
	*r = Result{Outcome: OutcomePending}
}

// Record is the contract a host entity satisfies to have its candidate
// password checked.
type Record interface {
	RecordID() string
	// IsPersisted distinguishes an existing record changing its password
	// from a record being created.
	IsPersisted() bool
	// PasswordChanged reports whether this attempt actually sets a new
	// password; untouched passwords are never re-checked.
	PasswordChanged() bool
	BreachResult() *Result
	AddFieldError(field, kind string, meta map[string]any)
}

// AttemptObserver is implemented by records that want to see the candidate
// password after every non-skipped check, whatever the verdict.
type AttemptObserver interface {
	AfterPasswordAttempt(password string)
}

// LookupErrorObserver is implemented by records that want lookup failures
// surfaced to them despite the fail-open acceptance.
type LookupErrorObserver interface {
	AfterLookupError(err error)
}

// Lookup answers how many times a password appears in breach corpora.
// *hibp.Client satisfies it.
type Lookup interface {
	Check(ctx context.Context, password string) (int, error)
}

// Config gates and tunes checking. It is read once at construction; the
// scoped With* helpers are the only sanctioned mutation.
type Config struct {
	Enabled       bool
	CheckOnSignIn bool
	Thresholds    Thresholds
}

// Checker runs breach checks at the validation boundary. Lookup failures
// never block the caller: the password is accepted, the error is logged and
// handed to the record's LookupErrorObserver when implemented.
type Checker struct {
	lookup  Lookup
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewChecker builds a checker. metrics may be nil.
func NewChecker(lookup Lookup, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Checker {
	return &Checker{
		lookup:  lookup,
		cfg:     cfg,
		logger:  logger.With().Str("component", "breach_checker").Logger(),
		metrics: m,
	}
}

// BeforeValidate clears any breach state left on the record by a previous
// attempt. It runs unconditionally so a stale verdict can never leak into an
// attempt that skips the check.
func (c *Checker) BeforeValidate(rec Record) {
	rec.BreachResult().reset()
}

// Required reports whether the blocking check applies to this attempt.
func (c *Checker) Required(rec Record) bool {
	return c.cfg.Enabled && rec.PasswordChanged()
}

// ValidatePassword runs the blocking check and attaches a pwned_password
// field error on rejection. Callers must have called BeforeValidate first.
func (c *Checker) ValidatePassword(ctx context.Context, rec Record, password string) Decision {
	res := rec.BreachResult()
	if !c.Required(rec) {
		res.Outcome = OutcomeSkipped
		return DecisionAccept
	}

	count, err := c.query(ctx, rec, password)
	if err != nil {
		return DecisionAccept
	}

	res.Count = count
	decision := Evaluate(count, rec.IsPersisted(), c.cfg.Thresholds)
	if decision == DecisionReject {
		res.Outcome = OutcomeRejected
		rec.AddFieldError(FieldPassword, KindPwnedPassword, map[string]any{
			"count":   count,
			"user_id": rec.RecordID(),
		})
	} else {
		res.Outcome = OutcomeAccepted
	}
	c.observeDecision("validate", decision)
	return decision
}

// SignInCheck is the non-blocking post-authentication probe. It never
// rejects; it reports whether the password should be flagged to the user.
// The occurrence count is available on the record's Result.
func (c *Checker) SignInCheck(ctx context.Context, rec Record, password string) bool {
	res := rec.BreachResult()
	res.reset()
	if !c.cfg.CheckOnSignIn {
		res.Outcome = OutcomeSkipped
		return false
	}

	count, err := c.query(ctx, rec, password)
	if err != nil {
		return false
	}

	res.Count = count
	decision := EvaluateSignIn(count, c.cfg.Thresholds)
	if decision == DecisionWarn {
		res.Outcome = OutcomeWarned
	} else {
		res.Outcome = OutcomeAccepted
	}
	c.observeDecision("sign_in", decision)
	return decision == DecisionWarn
}

// query performs the single lookup for this attempt. On failure the record
// is marked errored with a zero count and the error is returned for the
// caller to translate into acceptance.
func (c *Checker) query(ctx context.Context, rec Record, password string) (int, error) {
	res := rec.BreachResult()
	res.Outcome = OutcomeQuerying

	start := time.Now()
	count, err := c.lookup.Check(ctx, password)
	c.observeLookup(time.Since(start), err)
	res.CheckedAt = time.Now()

	if o, ok := rec.(AttemptObserver); ok {
		o.AfterPasswordAttempt(password)
	}

	if err != nil {
		res.Count = 0
		res.Erred = true
		res.Outcome = OutcomeErrored
		c.logger.Warn().
			Err(err).
			Str("record_id", rec.RecordID()).
			Msg("breach lookup failed, accepting password (fail-open)")
		if o, ok := rec.(LookupErrorObserver); ok {
			o.AfterLookupError(err)
		}
		return 0, err
	}
	return count, nil
}

func (c *Checker) observeLookup(d time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var le *hibp.LookupError
		if errors.As(err, &le) {
			outcome = string(le.Kind)
		}
		c.metrics.BreachFailOpen.Inc()
	}
	c.metrics.BreachLookups.WithLabelValues(outcome).Inc()
	c.metrics.BreachLookupLatency.Observe(d.Seconds())
}

func (c *Checker) observeDecision(path string, d Decision) {
	if c.metrics == nil {
		return
	}
	c.metrics.BreachDecisions.WithLabelValues(path, d.String()).Inc()
}
