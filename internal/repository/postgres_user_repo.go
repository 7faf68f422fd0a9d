package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
)

var userColumns = []string{"id", "fullname", "email", "gender", "phone", "created_at", "updated_at"}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// password_hash列はSELECTしない。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	query, args, err := psq.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find user query: %w", err)
	}

	user := &model.User{}
	var gender string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Fullname, &user.Email, &gender, &user.Phone, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	user.Gender = model.Gender(gender)

	return user, nil
}

// FindCredentialByEmail はログイン用にパスワードハッシュ付きのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindCredentialByEmail(ctx context.Context, email string) (*model.UserCredential, error) {
	return r.findCredential(ctx, sq.Expr("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

// FindCredentialByID はパスワード照合用にパスワードハッシュ付きのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindCredentialByID(ctx context.Context, id string) (*model.UserCredential, error) {
	return r.findCredential(ctx, sq.Eq{"id": id})
}

func (r *PostgresUserRepo) findCredential(ctx context.Context, pred sq.Sqlizer) (*model.UserCredential, error) {
	query, args, err := psq.Select(append(append([]string{}, userColumns...), "password_hash")...).
		From("users").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find credential query: %w", err)
	}

	cred := &model.UserCredential{}
	var gender string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&cred.ID, &cred.Fullname, &cred.Email, &gender, &cred.Phone, &cred.CreatedAt, &cred.UpdatedAt,
		&cred.PasswordHash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user credential: %w", err)
	}
	cred.Gender = model.Gender(gender)

	return cred, nil
}

// UpdatePasswordHash はパスワードハッシュとupdated_atを更新する。該当行がない場合はfalseを返す。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string, updatedAt time.Time) (bool, error) {
	query, args, err := psq.Update("users").
		Set("password_hash", passwordHash).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update password query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n > 0, nil
}

// compile-time interface check
var (
	_ UserRepository           = (*PostgresUserRepo)(nil)
	_ UserCredentialRepository = (*PostgresUserRepo)(nil)
)
