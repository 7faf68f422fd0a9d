package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

var sessionColumns = []string{"id", "user_id", "expires_at", "created_at", "updated_at"}

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Insert はセッションを作成する。
func (r *PostgresSessionRepo) Insert(ctx context.Context, session *model.Session) error {
	query, args, err := psq.Insert("sessions").
		Columns(sessionColumns...).
		Values(session.ID, session.UserID, session.ExpiresAt, session.CreatedAt, session.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert session query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("failed to create session: %w", ErrDuplicateID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindValid は指定IDの有効なセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindValid(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"id": id}).
		Where(sq.GtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find session query: %w", err)
	}

	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// UpdateExpiry はセッションの有効期限を更新し、更新後の行を返す。該当行がない場合はnilを返す。
// updatedAt時点で期限切れの行は更新しない。
func (r *PostgresSessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt, updatedAt time.Time) (*model.Session, error) {
	query, args, err := psq.Update("sessions").
		Set("expires_at", expiresAt).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id}).
		Where(sq.Gt{"expires_at": updatedAt}).
		Suffix("RETURNING id, user_id, expires_at, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update session query: %w", err)
	}

	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update session expiry: %w", err)
	}
	return session, nil
}

// Delete は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) Delete(ctx context.Context, id string) error {
	query, args, err := psq.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete session query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除し、削除したIDを返す。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) ([]string, error) {
	query, args, err := psq.Delete("sessions").
		Where(sq.Eq{"user_id": userID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete user sessions query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted sessions: %w", err)
	}
	return ids, nil
}

// DeleteExpired は期限切れセッションを一括削除し、削除した行のIDと所有ユーザーを返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, now time.Time) ([]model.ExpiredSession, error) {
	query, args, err := psq.Delete("sessions").
		Where(sq.Lt{"expires_at": now}).
		Suffix("RETURNING id, user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete expired sessions query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	defer rows.Close()

	var deleted []model.ExpiredSession
	for rows.Next() {
		var e model.ExpiredSession
		if err := rows.Scan(&e.ID, &e.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}
		deleted = append(deleted, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired sessions: %w", err)
	}
	return deleted, nil
}

// scanSession は1行をSessionに読み込む。行がない場合はnilを返す。
func scanSession(row *sql.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
