// Package auth guards the ops HTTP API with a single configured operator
// account and database-backed session tokens.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
)

const sessionTTL = 24 * time.Hour

type Service struct {
	db       *sql.DB
	username string
	passHash []byte
}

// NewService hashes the configured operator password once at startup; the
// plaintext never leaves config.
func NewService(db *sql.DB, username, password string) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Service{db: db, username: username, passHash: hash}, nil
}

func (s *Service) Login(username, password string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(sessionTTL)
	if _, err := s.db.Exec("INSERT INTO ops_sessions (token, username, expires_at) VALUES (?, ?, ?)", token, username, expires); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) ValidateSession(token string) (string, error) {
	var username string
	var expiresAt time.Time
	err := s.db.QueryRow("SELECT username, expires_at FROM ops_sessions WHERE token = ?", token).Scan(&username, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionExpired
		}
		return "", err
	}
	if time.Now().After(expiresAt) {
		s.db.Exec("DELETE FROM ops_sessions WHERE token = ?", token)
		return "", ErrSessionExpired
	}
	return username, nil
}

func (s *Service) Logout(token string) error {
	_, err := s.db.Exec("DELETE FROM ops_sessions WHERE token = ?", token)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
