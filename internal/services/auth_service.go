package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

const (
	minUsernameLength = 4
	minPasswordLength = 8
)

var (
	ErrUsernameTooShort = fmt.Errorf("username must be at least %d characters", minUsernameLength)
	ErrPasswordTooWeak  = fmt.Errorf("password must be at least %d characters and contain a digit", minPasswordLength)
	ErrUsernameTaken    = errors.New("username is already taken")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so login never reveals whether an account exists.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// AuthService handles registration, login and session management.
type AuthService struct {
	storage    *storage.SQLiteRepository
	sessionTTL time.Duration
}

func NewAuthService(storage *storage.SQLiteRepository, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		storage:    storage,
		sessionTTL: sessionTTL,
	}
}

// Register validates the credentials, hashes the password and creates the
// user.
func (s *AuthService) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return core.User{}, ErrUsernameTooShort
	}
	if !validPassword(password) {
		return core.User{}, ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, username, string(hash))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func validPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}
	for _, r := range password {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Login verifies the credentials and returns the user. Any failure maps to
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (core.User, error) {
	user, err := s.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn a comparison anyway to keep timing uniform for
			// unknown usernames.
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// dummyHash is a bcrypt hash of an unguessable value, compared against when
// the username does not exist.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("spendtrack-dummy-password"), bcrypt.DefaultCost)
	return h
}()

// StartSession creates a fresh session token for the user. Logging in always
// gets a new token, never a recycled one.
func (s *AuthService) StartSession(ctx context.Context, userID int64) (string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.storage.CreateSession(ctx, token, userID, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	return token, expiresAt, nil
}

// SessionUser resolves a session token to its user.
func (s *AuthService) SessionUser(ctx context.Context, token string) (core.User, error) {
	return s.storage.SessionUser(ctx, token)
}

// Session resolves a session token to its user and expiry.
func (s *AuthService) Session(ctx context.Context, token string) (storage.SessionInfo, error) {
	return s.storage.GetSession(ctx, token)
}

// RenewSession extends a session by a full TTL from now.
func (s *AuthService) RenewSession(ctx context.Context, token string) (time.Time, error) {
	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.storage.RenewSession(ctx, token, expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// SessionTTL returns the configured session lifetime.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Logout invalidates the session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.storage.DeleteSession(ctx, token)
}

// CleanExpiredSessions removes expired sessions, logging how many went away.
func (s *AuthService) CleanExpiredSessions(ctx context.Context) error {
	n, err := s.storage.CleanExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned expired sessions", "count", n)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
