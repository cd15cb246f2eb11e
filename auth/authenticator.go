package auth

import (
	"crypto/subtle"

	"syncx/domain/chat"
	"syncx/errors"
)

// UserLookup resolves a user id to its record.
type UserLookup interface {
	Get(id string) (chat.User, error)
}

// Authenticator turns a token into an identity. The REST path trusts the
// token; the socket handshake also requires the user to still exist.
type Authenticator struct {
	tokens   *TokenManager
	users    UserLookup
	adminKey string
}

func NewAuthenticator(tokens *TokenManager, users UserLookup, adminKey string) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, adminKey: adminKey}
}

func (a *Authenticator) Tokens() *TokenManager { return a.tokens }

// Authenticate returns the user id carried by a user token.
func (a *Authenticator) Authenticate(token string) (string, error) {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return "", err
	}
	if claims.Admin || claims.UserID == "" {
		return "", errors.ErrInvalidToken
	}
	return claims.UserID, nil
}

// AuthenticateAdmin accepts admin tokens only.
func (a *Authenticator) AuthenticateAdmin(token string) error {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return err
	}
	if !claims.Admin {
		return errors.ErrForbidden.WithMessage("only admin can access this route")
	}
	return nil
}

// AuthenticateHandshake validates a socket token and loads its user. An
// unknown user is Unauthorized, the connection must be refused.
func (a *Authenticator) AuthenticateHandshake(token string) (chat.User, error) {
	userID, err := a.Authenticate(token)
	if err != nil {
		return chat.User{}, err
	}
	user, err := a.users.Get(userID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return chat.User{}, errors.ErrInvalidToken.WithMessage("please login to access this route")
	}
	if err != nil {
		return chat.User{}, err
	}
	return user, nil
}

// VerifyAdminKey compares the secret in constant time and returns an admin
// token.
func (a *Authenticator) VerifyAdminKey(secretKey string) (string, error) {
	if a.adminKey == "" || subtle.ConstantTimeCompare([]byte(secretKey), []byte(a.adminKey)) != 1 {
		return "", errors.ErrInvalidAdminKey
	}
	return a.tokens.GenerateAdminToken()
}
