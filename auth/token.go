package auth

import (
	"time"

	"syncx/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "syncx"
	// AdminTokenDuration is the lifetime of an administrative session.
	AdminTokenDuration = 15 * time.Minute
)

// CustomClaims defines the structure of the data stored inside the JWT.
// A user token carries UserID; an admin token carries Admin and no user.
type CustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens with the server secret.
type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateUserToken creates a signed JWT for a specific user.
func (m *TokenManager) GenerateUserToken(userID string) (string, error) {
	return m.sign(CustomClaims{UserID: userID}, m.duration)
}

// GenerateAdminToken creates a token granting the admin surface only.
func (m *TokenManager) GenerateAdminToken() (string, error) {
	return m.sign(CustomClaims{Admin: true}, AdminTokenDuration)
}

func (m *TokenManager) sign(claims CustomClaims, duration time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
	}
	// Create the token using the HS256 algorithm (HMAC with SHA256).
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.ErrTokenGeneration.WithMessage("sign token: %v", err)
	}
	return signed, nil
}

// Validate parses the token and checks its signature, algorithm, issuer and
// expiration. Any failure is reported as ErrInvalidToken.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, errors.ErrUnauthorized
	}
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
