package payment

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// TokenTTL is the lifetime of a gateway request token.
	TokenTTL = 60 * time.Second
	// FormParamsClaim carries the request parameters inside the token.
	FormParamsClaim = "form_params"
	jwtIDBytes      = 32
)

// SignedToken is a compact HS256 JWT together with its registered claims.
type SignedToken struct {
	Compact   string
	JWTID     string
	Issuer    string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs gateway request tokens. Clock and Random are injectable so
// tests can produce deterministic tokens.
type TokenIssuer struct {
	Clock  func() time.Time
	Random io.Reader
}

// Issue builds a fresh token for one request; tokens are never reused.
func (ti TokenIssuer) Issue(profile PaymentProfile, formParams any) (SignedToken, error) {
	secret := strings.TrimSpace(profile.APISecret)
	if secret == "" {
		return SignedToken{}, errors.New("payment: api secret is required")
	}
	jti, err := ti.jwtID()
	if err != nil {
		return SignedToken{}, fmt.Errorf("payment: token id: %w", err)
	}
	now := ti.now().Truncate(time.Second)
	exp := now.Add(TokenTTL)
	tok, err := jwt.NewBuilder().
		IssuedAt(now).
		JwtID(jti).
		Issuer(profile.APIKey).
		NotBefore(now).
		Expiration(exp).
		Claim(FormParamsClaim, formParams).
		Build()
	if err != nil {
		return SignedToken{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(profile.APISecret)))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{
		Compact:   string(signed),
		JWTID:     jti,
		Issuer:    profile.APIKey,
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: exp,
	}, nil
}

// VerifyToken parses a compact token signed with secret and validates its time
// claims against now.
func VerifyToken(compact, secret string, now time.Time) (jwt.Token, error) {
	return jwt.ParseString(compact,
		jwt.WithKey(jwa.HS256, []byte(secret)),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	)
}

func (ti TokenIssuer) now() time.Time {
	if ti.Clock != nil {
		return ti.Clock()
	}
	return time.Now()
}

func (ti TokenIssuer) jwtID() (string, error) {
	r := ti.Random
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, jwtIDBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
