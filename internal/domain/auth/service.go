// Package auth validates dashboard users against a flat credential store.
package auth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike, so a caller cannot distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credential is one line of the credential CSV ("user,password"). The
// password field holds either a bcrypt hash or a legacy plaintext value.
type Credential struct {
	User     string `csv:"user"`
	Password string `csv:"password"`
}

// Store is an in-memory credential set.
type Store struct {
	byUser map[string]string
	logger *slog.Logger
}

// LoadStore reads the credential CSV into memory. Duplicate users keep the
// first occurrence.
func LoadStore(r io.Reader, logger *slog.Logger) (*Store, error) {
	var creds []Credential
	if err := gocsv.Unmarshal(r, &creds); err != nil {
		return nil, fmt.Errorf("parse credential store: %w", err)
	}

	s := &Store{byUser: make(map[string]string, len(creds)), logger: logger}
	for _, c := range creds {
		user := strings.TrimSpace(c.User)
		if user == "" {
			continue
		}
		if _, ok := s.byUser[user]; ok {
			logger.Warn("duplicate credential entry ignored", slog.String("user", user))
			continue
		}
		s.byUser[user] = c.Password
	}
	logger.Info("credential store loaded", slog.Int("users", len(s.byUser)))
	return s, nil
}

// Authenticate checks the password for a user. Hashed entries are verified
// with bcrypt; anything else falls back to a direct comparison for stores
// that predate hashing.
func (s *Store) Authenticate(user, password string) error {
	stored, ok := s.byUser[strings.TrimSpace(user)]
	if !ok {
		return ErrInvalidCredentials
	}
	if isBcryptHash(stored) {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if stored != password {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for the credential store.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
