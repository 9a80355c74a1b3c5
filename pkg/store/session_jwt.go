package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "learninghelper"
	defaultJWTAudience = "learninghelper-api"

	purposeReset = "password-reset"

	minSecretLength = 32
)

var defaultJWTLeeway = 30 * time.Second

// JWTSessionStore issues and validates HS256 JWTs. Session tokens and
// password-reset tokens share the signing key; reset tokens carry a purpose
// claim so one can never stand in for the other.
type JWTSessionStore struct {
	secret  []byte
	revoker TokenRevoker

	issuer   string
	audience string
	leeway   time.Duration
}

type tokenClaims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a session store signing with secret.
func NewJWTSessionStore(secret string, revoker TokenRevoker) (*JWTSessionStore, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	return &JWTSessionStore{
		secret:   []byte(secret),
		revoker:  revoker,
		issuer:   defaultJWTIssuer,
		audience: defaultJWTAudience,
		leeway:   defaultJWTLeeway,
	}, nil
}

// NewSession creates a signed session JWT valid for ttl.
func (s *JWTSessionStore) NewSession(userID string, ttl time.Duration) (string, error) {
	return s.sign(userID, "", ttl)
}

// NewResetToken creates a short-lived token usable only for password reset.
func (s *JWTSessionStore) NewResetToken(userID string, ttl time.Duration) (string, error) {
	return s.sign(userID, purposeReset, ttl)
}

func (s *JWTSessionStore) sign(userID, purpose string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GetUserIDByToken validates a session JWT and returns the subject.
// Reset tokens are rejected here.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if claims.Purpose != "" {
		return "", false, errors.New("not a session token")
	}
	return claims.Subject, true, nil
}

// UserIDFromResetToken validates a password-reset token and returns the subject.
func (s *JWTSessionStore) UserIDFromResetToken(token string) (string, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purposeReset {
		return "", errors.New("not a reset token")
	}
	return claims.Subject, nil
}

// DeleteSession revokes the token until it expires. Also used to consume
// reset tokens after a successful password change.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revoker.Revoke(claims.ID, ttl)
}

func (s *JWTSessionStore) parseAndVerify(token string) (tokenClaims, error) {
	claims := tokenClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("token subject missing")
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return claims, err
		}
		if revoked {
			return claims, errors.New("token revoked")
		}
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}
