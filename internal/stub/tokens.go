package stub

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bookden/pkg/platform/sentinel"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenManager mints and verifies the HS256 tokens the stub issues.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a manager with the platform's default lifetimes:
// short-lived access tokens, week-long refresh tokens.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

// Access mints an access token bound to the user's email.
func (tm *TokenManager) Access(email string) (string, error) {
	return tm.mint(email, tokenTypeAccess, tm.accessTTL)
}

// Refresh mints a refresh token bound to the user's email.
func (tm *TokenManager) Refresh(email string) (string, error) {
	return tm.mint(email, tokenTypeRefresh, tm.refreshTTL)
}

func (tm *TokenManager) mint(email, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"typ":   typ,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns the subject email.
func (tm *TokenManager) VerifyAccess(token string) (string, error) {
	return tm.verify(token, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns the subject email.
func (tm *TokenManager) VerifyRefresh(token string) (string, error) {
	return tm.verify(token, tokenTypeRefresh)
}

func (tm *TokenManager) verify(tokenString, wantType string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("token expired: %w", sentinel.ErrExpired)
		}
		return "", fmt.Errorf("parsing token: %w", sentinel.ErrInvalidState)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims shape: %w", sentinel.ErrInvalidState)
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return "", fmt.Errorf("wrong token type %q: %w", claims["typ"], sentinel.ErrInvalidState)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("token has no subject: %w", sentinel.ErrInvalidState)
	}
	return email, nil
}
