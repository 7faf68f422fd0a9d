// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
)

// ErrDuplicateID は同じIDの行が既に存在する場合に返される。
var ErrDuplicateID = errors.New("duplicate id")

// psq はPostgreSQL用のプレースホルダ（$1, $2, ...）を使うクエリビルダ。
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーの公開プロフィールを取得する。
	// パスワードハッシュは読み出さない。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindCredentialByEmail はログイン用にパスワードハッシュ付きのユーザー行を取得する。
	// メールアドレスは大文字小文字を区別しない。見つからない場合はnilを返す。
	FindCredentialByEmail(ctx context.Context, email string) (*model.UserCredential, error)
}

// UserCredentialRepository はパスワード変更で使う認証情報の読み書きインターフェース。
type UserCredentialRepository interface {
	// FindCredentialByID は指定IDのパスワードハッシュ付きユーザー行を取得する。見つからない場合はnilを返す。
	FindCredentialByID(ctx context.Context, id string) (*model.UserCredential, error)

	// UpdatePasswordHash はパスワードハッシュを更新する。該当行がない場合はfalseを返す。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, updatedAt time.Time) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Insert はセッションを作成する。同じIDが既に存在する場合はErrDuplicateIDを返す。
	Insert(ctx context.Context, session *model.Session) error

	// FindValid は指定IDかつ expires_at >= now のセッションを取得する。
	// 該当しない場合はnilを返す。
	FindValid(ctx context.Context, id string, now time.Time) (*model.Session, error)

	// UpdateExpiry はセッションの expires_at と updated_at を更新し、更新後の行を返す。
	// updatedAtを現在時刻とみなし、expires_at > updatedAt の行だけを更新する。
	// 該当行がない場合はnilを返す。
	UpdateExpiry(ctx context.Context, id string, expiresAt, updatedAt time.Time) (*model.Session, error)

	// Delete は指定IDのセッションを削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除し、削除したIDを返す。
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)

	// DeleteExpired は expires_at < now のセッションを一括削除し、削除した行のIDと所有ユーザーを返す。
	DeleteExpired(ctx context.Context, now time.Time) ([]model.ExpiredSession, error)
}
