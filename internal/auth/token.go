// internal/auth/token.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the decoded form of a session token.
type Session struct {
	UserID    uuid.UUID
	Role      model.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret       []byte
	issuer       string
	expiryPeriod time.Duration
	now          func() time.Time
	revocations  RevocationList
}

type TokenOption func(*TokenManager)

// WithTokenClock replaces time.Now for issuing and validation.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) { tm.now = now }
}

// WithRevocationList makes Decode reject tokens whose id has been revoked.
func WithRevocationList(list RevocationList) TokenOption {
	return func(tm *TokenManager) { tm.revocations = list }
}

func NewTokenManager(secret, issuer string, expiryPeriod time.Duration, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{
		secret:       []byte(secret),
		issuer:       issuer,
		expiryPeriod: expiryPeriod,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// TTL returns the fixed lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.expiryPeriod
}

// Issue mints a signed token for userID carrying role.
func (tm *TokenManager) Issue(userID uuid.UUID, role model.Role) (string, *Session, error) {
	if userID == uuid.Nil {
		return "", nil, fmt.Errorf("issuing token: %w", domain.ErrInvalidInput)
	}
	if !role.Valid() {
		return "", nil, fmt.Errorf("issuing token: %w", domain.ErrInvalidRole)
	}

	now := tm.now().Truncate(time.Second)
	session := &Session{
		UserID:    userID,
		Role:      role,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(tm.expiryPeriod),
	}

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    tm.issuer,
			ID:        session.TokenID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, session, nil
}

// Decode validates tokenString and returns its session. Expired tokens yield
// domain.ErrTokenExpired, revoked ones domain.ErrTokenRevoked and anything
// else malformed domain.ErrTokenInvalid. A failure to consult the revocation
// list is returned wrapped as is.
func (tm *TokenManager) Decode(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: bad subject", domain.ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: bad role", domain.ErrTokenInvalid)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", domain.ErrTokenInvalid)
	}

	session := &Session{
		UserID:    userID,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	if tm.revocations != nil {
		revoked, err := tm.revocations.IsRevoked(ctx, session.TokenID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return nil, domain.ErrTokenRevoked
		}
	}

	return session, nil
}

// Revoke adds the session's token id to the revocation list, if one is
// configured. It reports whether the token was revoked server-side.
func (tm *TokenManager) Revoke(ctx context.Context, session *Session) (bool, error) {
	if tm.revocations == nil || session == nil {
		return false, nil
	}
	if err := tm.revocations.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return false, fmt.Errorf("revoking token: %w", err)
	}
	return true, nil
}
