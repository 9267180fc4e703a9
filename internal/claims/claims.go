// Package claims issues and verifies signed, time-boxed assertions used for
// login sessions and invitations.
package claims

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned when a token verified correctly but is past its expiry.
	ErrExpired = errors.New("claims: token expired")
	// ErrInvalid is returned for malformed, tampered or misdirected tokens.
	ErrInvalid = errors.New("claims: token invalid")
)

// Purposes separate session tokens from invitation tokens.
const (
	PurposeSession = "session"
	PurposeInvite  = "invite"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Role      string
	Purpose   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer. now may be nil to use the wall clock.
func NewSigner(secret, issuer string, now func() time.Time) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("claims: signing secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), issuer: issuer, now: now}, nil
}

// Issue signs c with an expiry ttl from now. c.Purpose becomes the audience.
func (s *Signer) Issue(c Claims, ttl time.Duration) (string, error) {
	if c.Subject == "" {
		return "", fmt.Errorf("claims: subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("claims: ttl must be positive")
	}
	issuedAt := s.now()
	payload := tokenClaims{
		Role: c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	if c.Purpose != "" {
		payload.Audience = jwt.ClaimStrings{c.Purpose}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("claims: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and audience of token.
func (s *Signer) Verify(token, purpose string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if purpose != "" {
		opts = append(opts, jwt.WithAudience(purpose))
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var payload tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &payload, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid || payload.Subject == "" {
		return Claims{}, ErrInvalid
	}

	out := Claims{
		Subject: payload.Subject,
		Role:    payload.Role,
		Purpose: purpose,
	}
	if payload.IssuedAt != nil {
		out.IssuedAt = payload.IssuedAt.Time
	}
	if payload.ExpiresAt != nil {
		out.ExpiresAt = payload.ExpiresAt.Time
	}
	return out, nil
}
