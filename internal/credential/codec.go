// Package credential encodes and decodes the signed session credential
// carried by clients as a bearer token.
//
// A credential holds the owner id and its issue and expiry instants. It is
// signed with a shared HMAC secret. New credentials are always signed with
// one canonical algorithm while decoding accepts any algorithm from an
// allow-list, so credentials issued under an older default keep working.
// Expiry is not enforced here; the session store decides whether a
// credential is still usable.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed reports a credential that is not structurally valid or
	// lacks one of its required claims.
	ErrMalformed = errors.New("credential: malformed")
	// ErrSignatureInvalid reports a credential whose signature does not verify
	// or whose algorithm is not allowed.
	ErrSignatureInvalid = errors.New("credential: signature invalid")
)

// Claims is the decoded payload of a credential.
type Claims struct {
	SubjectID uint64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	SubjectID *uint64 `json:"id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies credentials. It is immutable and safe for
// concurrent use.
type Codec struct {
	secret  []byte
	method  jwt.SigningMethod
	allowed []string
}

// NewCodec returns a Codec that signs with algorithm and accepts the algorithms
// in allowed. Only HMAC algorithms are supported.
func NewCodec(secret, algorithm string, allowed []string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("credential: empty secret")
	}
	method, err := hmacMethod(algorithm)
	if err != nil {
		return nil, err
	}

	c := &Codec{secret: []byte(secret), method: method}
	for _, alg := range allowed {
		m, err := hmacMethod(alg)
		if err != nil {
			return nil, err
		}
		c.allowed = append(c.allowed, m.Alg())
	}
	if !c.allows(method.Alg()) {
		return nil, fmt.Errorf("credential: algorithm %s is not in the allow-list", method.Alg())
	}
	return c, nil
}

func hmacMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	m, ok := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(alg))).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("credential: unsupported algorithm %q", alg)
	}
	return m, nil
}

func (c *Codec) allows(alg string) bool {
	for _, a := range c.allowed {
		if a == alg {
			return true
		}
	}
	return false
}

// Algorithm returns the canonical signing algorithm.
func (c *Codec) Algorithm() string { return c.method.Alg() }

// Encode signs claims with the canonical algorithm.
func (c *Codec) Encode(claims Claims) (string, error) {
	id := claims.SubjectID
	token := jwt.NewWithClaims(c.method, wireClaims{
		SubjectID: &id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("credential: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies s and returns its claims. It fails with ErrMalformed or
// ErrSignatureInvalid; an expired credential decodes successfully.
func (c *Codec) Decode(s string) (Claims, error) {
	var wire wireClaims
	_, err := jwt.ParseWithClaims(s, &wire, c.key,
		jwt.WithValidMethods(c.allowed),
		jwt.WithoutClaimsValidation(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	if wire.SubjectID == nil || wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing claims", ErrMalformed)
	}
	return Claims{
		SubjectID: *wire.SubjectID,
		IssuedAt:  wire.IssuedAt.Time.UTC(),
		ExpiresAt: wire.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *Codec) key(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.secret, nil
}
