package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner firma el token opaco de sesión para que el cliente no pueda fabricarlo.
type TokenSigner struct {
	secret []byte
	issuer string
}

type SessionClaims struct {
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("session credential invalid")
	ErrTokenExpired = errors.New("session credential expired")
)

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		issuer: "chirp",
	}
}

// Sign envuelve sessionToken en un JWT HS256 que vence junto con la sesión.
func (s *TokenSigner) Sign(sessionToken, userID string, expiresAt time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(sessionToken) == "" {
		return "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify valida la firma y devuelve el token opaco contenido.
func (s *TokenSigner) Verify(credential string) (SessionClaims, error) {
	if len(s.secret) == 0 {
		return SessionClaims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(credential) == "" {
		return SessionClaims{}, ErrTokenInvalid
	}
	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	_, err := parser.ParseWithClaims(credential, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrTokenExpired
		}
		return SessionClaims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.SessionToken) == "" {
		return SessionClaims{}, ErrTokenInvalid
	}
	return claims, nil
}
