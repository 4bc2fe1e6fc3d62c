package services

import (
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Admin is an operator allowed to read reports.
type Admin struct {
	Username string
	PassHash []byte
}

type AuthStore interface {
	FindAdmin(username string) (*Admin, error)
}

// StaticAdmins serves a fixed set of admins, typically from configuration.
type StaticAdmins map[string]*Admin

func (s StaticAdmins) FindAdmin(username string) (*Admin, error) {
	for name, a := range s {
		if subtle.ConstantTimeCompare([]byte(name), []byte(username)) == 1 {
			return a, nil
		}
	}
	return nil, nil
}

type TokenSigner func(username string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthService(store AuthStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		signToken: signer,
		tokenTTL:  ttl,
	}
}

// HashPassword returns the bcrypt hash stored in configuration.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", NewInvalidError("password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) Login(username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("username/password required")
	}
	a, err := s.store.FindAdmin(username)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(a.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(a.Username, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Username: a.Username, ExpiresAt: s.now().Add(s.tokenTTL)}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
