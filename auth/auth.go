// Package auth decodes the opaque authorization token a query carries
// into the requesting principal. Provisioning of tokens and any external
// authorization infrastructure stay out of scope.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"

	"github.com/sonic-data/sonic-go/internal/xerrors"
)

var (
	ErrMissingToken = xerrors.Wrap(errors.New("auth: missing token"))
	ErrInvalidToken = xerrors.Wrap(errors.New("auth: invalid token"))
)

// Principal is the authenticated identity behind a query.
type Principal struct {
	Subject string
	Claims  jwt.MapClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(token string) (*Principal, error) {
	if token == "" {
		return nil, xerrors.WithStackTrace(ErrMissingToken)
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xerrors.WithStackTrace(ErrInvalidToken)
		}

		return v.secret, nil
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	if !parsed.Valid {
		return nil, xerrors.WithStackTrace(ErrInvalidToken)
	}
	subject, _ := claims["sub"].(string)

	return &Principal{
		Subject: subject,
		Claims:  claims,
	}, nil
}

// Token issues a signed token for subject, valid for ttl. Used by the
// login flow and tests.
func Token(subject string, secret []byte, ttl time.Duration, clock clockwork.Clock) (string, error) {
	now := clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", xerrors.WithStackTrace(err)
	}

	return signed, nil
}
