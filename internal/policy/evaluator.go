// internal/policy/evaluator.go
package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
)

// State is a step of the per-request evaluation.
type State string

const (
	StateUnauthenticated   State = "unauthenticated"
	StateTokenPresent      State = "token_present"
	StateTokenValid        State = "token_valid"
	StateRoleAuthoritative State = "role_authoritative"
	StateAuthorized        State = "authorized"
	StateDenied            State = "denied"
)

type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeDeny     Outcome = "deny"
	OutcomeFailOpen Outcome = "fail_open"
)

// FailureMode selects what a privileged check does when the authoritative
// role cannot be read.
type FailureMode string

const (
	FailOpen   FailureMode = "open"
	FailClosed FailureMode = "closed"
)

func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case FailOpen, FailClosed:
		return FailureMode(s), nil
	}
	return "", errors.New("policy failure mode must be open or closed")
}

// Deny reasons. Clients never see these.
const (
	ReasonPublic          = "public route"
	ReasonMissingToken    = "missing session token"
	ReasonInvalidToken    = "invalid session token"
	ReasonExpiredToken    = "expired session token"
	ReasonRevokedToken    = "revoked session token"
	ReasonTokenCheck      = "session check unavailable"
	ReasonTokenRole       = "token role accepted"
	ReasonRoleMatch       = "authoritative role matches"
	ReasonRoleMismatch    = "authoritative role mismatch"
	ReasonUnknownUser     = "principal no longer exists"
	ReasonStoreFailOpen   = "role store unavailable, failing open"
	ReasonStoreFailClosed = "role store unavailable"
	ReasonGraceExceeded   = "role store unavailable beyond grace window"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID uuid.UUID
	// Role is the authoritative role when Authoritative is true and the
	// token's claim otherwise.
	Role          model.Role
	TokenRole     model.Role
	Authoritative bool
	Session       *auth.Session
}

// Decision is the result of evaluating one request.
type Decision struct {
	State     State
	Class     RouteClass
	Principal *Principal
	Outcome   Outcome
	// Redirect is where a browser should be sent on denial.
	Redirect  string
	Reason    string
	OutageAge time.Duration
	Err       error
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow || d.Outcome == OutcomeFailOpen
}

// TokenDecoder validates a raw session token.
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (*auth.Session, error)
}

// RoleResolver reads a user's current role from the source of truth. It
// returns domain.ErrUserNotFound when the user no longer exists.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID uuid.UUID) (model.Role, error)
}

type Config struct {
	Routes        RouteTable
	FailureMode   FailureMode
	FailOpenGrace time.Duration
	LoginPath     string
	HomePath      string
}

// Evaluator decides whether a request may proceed. It is safe for
// concurrent use; the only state it keeps across requests is the start of
// the current run of role-store failures.
type Evaluator struct {
	decoder  TokenDecoder
	resolver RoleResolver
	cfg      Config
	now      func() time.Time

	mu          sync.Mutex
	outageStart time.Time
}

type EvaluatorOption func(*Evaluator)

func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(decoder TokenDecoder, resolver RoleResolver, cfg Config, opts ...EvaluatorOption) *Evaluator {
	if cfg.FailureMode == "" {
		cfg.FailureMode = FailOpen
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	e := &Evaluator{
		decoder:  decoder,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify exposes the route table.
func (e *Evaluator) Classify(path string) RouteClass {
	return e.cfg.Routes.Classify(path)
}

func (e *Evaluator) LoginPath() string { return e.cfg.LoginPath }
func (e *Evaluator) HomePath() string  { return e.cfg.HomePath }

// Evaluate runs the request state machine for path with the raw token
// taken from the request's credential carrier.
func (e *Evaluator) Evaluate(ctx context.Context, path, token string) Decision {
	d := Decision{State: StateUnauthenticated, Class: e.cfg.Routes.Classify(path)}

	if d.Class == ClassPublic {
		d.Outcome = OutcomeAllow
		d.Reason = ReasonPublic
		return d
	}

	if token == "" {
		return e.deny(d, e.cfg.LoginPath, ReasonMissingToken, nil)
	}
	d.State = StateTokenPresent

	session, err := e.decoder.Decode(ctx, token)
	if err != nil {
		return e.deny(d, e.cfg.LoginPath, tokenReason(err), err)
	}
	d.State = StateTokenValid
	d.Principal = &Principal{
		UserID:    session.UserID,
		Role:      session.Role,
		TokenRole: session.Role,
		Session:   session,
	}

	if !d.Class.Privileged() {
		d.State = StateAuthorized
		d.Outcome = OutcomeAllow
		d.Reason = ReasonTokenRole
		return d
	}

	required := d.Class.RequiredRole()
	role, err := e.resolver.ResolveRole(ctx, session.UserID)
	switch {
	case err == nil:
		e.recordSuccess()
	case errors.Is(err, domain.ErrUserNotFound):
		e.recordSuccess()
		return e.deny(d, e.cfg.LoginPath, ReasonUnknownUser, err)
	default:
		return e.storeFailure(d, required, err)
	}

	d.State = StateRoleAuthoritative
	d.Principal.Role = role
	d.Principal.Authoritative = true

	if role != required {
		return e.deny(d, e.cfg.HomePath, ReasonRoleMismatch, nil)
	}
	d.State = StateAuthorized
	d.Outcome = OutcomeAllow
	d.Reason = ReasonRoleMatch
	return d
}

// storeFailure handles a role lookup that failed for infrastructure reasons.
// Open mode lets a request whose token claims the required role through to
// the page layer, but only while the outage is younger than the grace window.
func (e *Evaluator) storeFailure(d Decision, required model.Role, err error) Decision {
	age := e.recordFailure()
	d.OutageAge = age

	if e.cfg.FailureMode == FailClosed {
		return e.deny(d, e.cfg.HomePath, ReasonStoreFailClosed, err)
	}
	if d.Principal.TokenRole != required {
		return e.deny(d, e.cfg.HomePath, ReasonRoleMismatch, err)
	}
	if e.cfg.FailOpenGrace > 0 && age > e.cfg.FailOpenGrace {
		return e.deny(d, e.cfg.HomePath, ReasonGraceExceeded, err)
	}

	d.Outcome = OutcomeFailOpen
	d.Reason = ReasonStoreFailOpen
	d.Err = err
	return d
}

func (e *Evaluator) deny(d Decision, redirect, reason string, err error) Decision {
	d.State = StateDenied
	d.Outcome = OutcomeDeny
	d.Redirect = redirect
	d.Reason = reason
	d.Err = err
	return d
}

func (e *Evaluator) recordSuccess() {
	e.mu.Lock()
	e.outageStart = time.Time{}
	e.mu.Unlock()
}

// recordFailure notes a role-store failure and returns how long the
// current outage has lasted.
func (e *Evaluator) recordFailure() time.Duration {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outageStart.IsZero() {
		e.outageStart = now
	}
	return now.Sub(e.outageStart)
}

func tokenReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return ReasonExpiredToken
	case errors.Is(err, domain.ErrTokenRevoked):
		return ReasonRevokedToken
	case errors.Is(err, domain.ErrTokenInvalid):
		return ReasonInvalidToken
	}
	return ReasonTokenCheck
}
