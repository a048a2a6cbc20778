package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of tokens issued by this service.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 access tokens.
type Issuer struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(secret, audience string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret:   []byte(strings.TrimSpace(secret)),
		audience: strings.TrimSpace(audience),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue returns a signed token for subject with the given role.
func (i *Issuer) Issue(subject, role, name string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("missing JWT secret")
	}
	now := i.now()
	claims := Claims{
		Role: role,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func parseToken(tokenString string, secret []byte, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
