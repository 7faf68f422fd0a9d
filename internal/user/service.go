// Package user はユーザー自身によるアカウント操作のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/auth"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/repository"
)

// パスワード長の制約。上限はbcryptが扱えるバイト数。
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

var (
	// ErrWrongPassword は現在のパスワードが一致しない場合に返される。
	ErrWrongPassword = errors.New("current password does not match")
	// ErrPasswordTooShort は新しいパスワードがMinPasswordLength未満の場合に返される。
	ErrPasswordTooShort = errors.New("new password is too short")
	// ErrPasswordTooLong は新しいパスワードがMaxPasswordBytesを超える場合に返される。
	ErrPasswordTooLong = errors.New("new password is too long")
)

// SessionRevoker はユーザーの全セッションを失効させる。
// session.Serviceが実装する。
type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
type Service struct {
	credRepo repository.UserCredentialRepository
	sessions SessionRevoker
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(credRepo repository.UserCredentialRepository, sessions SessionRevoker) *Service {
	return &Service{
		credRepo: credRepo,
		sessions: sessions,
		now:      time.Now,
	}
}

// ChangePassword は現在のパスワードを照合してから新しいパスワードに更新し、
// そのユーザーの全セッションを失効させる。
// 処理順序: 照合 → ハッシュ更新 → 全セッション失効
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(newPassword) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	cred, err := s.credRepo.FindCredentialByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if cred == nil {
		return model.NewUserNotFoundError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(currentPassword)); err != nil {
		slog.Info("password change rejected", slog.String("user_id", userID))
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	updated, err := s.credRepo.UpdatePasswordHash(ctx, userID, hash, s.now())
	if err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}
	if !updated {
		return model.NewUserNotFoundError()
	}

	// 古いパスワードで発行されたセッションを全て無効にする
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("セッションの失効に失敗しました: %w", err)
	}

	slog.Info("password changed, all sessions revoked",
		slog.String("user_id", userID),
	)

	return nil
}
