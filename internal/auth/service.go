// Package auth はメールアドレスとパスワードによるログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/repository"
)

// ErrInvalidCredentials はメールアドレスが未登録、またはパスワードが一致しない場合に返される。
// どちらの理由かは区別しない。
var ErrInvalidCredentials = errors.New("invalid email or password")

// dummyHash は未登録メールアドレスでも照合処理の時間を揃えるためのハッシュ。
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6tD0U8v2Q2W0G7dWnKqC6jS")

// SessionIssuer はログイン成功時にセッションを発行する。
type SessionIssuer interface {
	Create(ctx context.Context, userID string, maxAge time.Duration) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration // セッション有効期間
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	SessionID string
	User      model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	sessions SessionIssuer
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, sessions SessionIssuer, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
		config:   config,
	}
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
// 返すユーザーからはパスワードハッシュを取り除いている。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.userRepo.FindCredentialByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if cred == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		slog.Info("login rejected", slog.String("user_id", cred.ID))
		return nil, ErrInvalidCredentials
	}

	user := cred.Public()
	sessionID, err := s.sessions.Create(ctx, user.ID, s.config.SessionMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{SessionID: sessionID, User: user}, nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。ユーザー登録やシード投入で使う。
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
