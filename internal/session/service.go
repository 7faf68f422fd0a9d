// Package session はセッションの発行・検証・失効と、セッションからユーザーを引く処理を提供する。
//
// 読み出しはキャッシュ優先で、ミス時のみ永続化ストアを参照する。
// 書き込みは常にストアを先に行い、成功した場合だけキャッシュに反映する。
// ただしDeleteだけは先にブラックリストへ登録し、並行する検証が必ず失効を観測するようにする。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/metrics"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/repository"
)

// セッション有効期間のデフォルト値
const (
	DefaultMaxAge      = 86400 * time.Second
	DefaultMaxLifetime = 7 * 24 * time.Hour
)

// Config はセッションサービスの設定。
type Config struct {
	// DefaultMaxAge はmaxAgeに0以下が渡されたときのセッション有効期間。
	DefaultMaxAge time.Duration
	// MaxLifetime は1回の発行・延長で付与できる有効期間の上限。
	// ブラックリストのエントリは少なくともこの期間保持される。
	MaxLifetime time.Duration
}

// Resolved はセッションと所有ユーザーの組。
type Resolved struct {
	User    model.User
	Session model.Session
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。キャッシュと同じ時計を渡すこと。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithIDGenerator はセッションID生成関数を差し替える。テスト用。
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Service はセッションとユーザーキャッシュの状態を変更できる唯一のコンポーネント。
type Service struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	caches   *Caches
	config   Config
	now      func() time.Time
	newID    func() (string, error)
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	caches *Caches,
	config Config,
	opts ...Option,
) *Service {
	if config.DefaultMaxAge <= 0 {
		config.DefaultMaxAge = DefaultMaxAge
	}
	if config.MaxLifetime <= 0 {
		config.MaxLifetime = DefaultMaxLifetime
	}
	s := &Service{
		sessions: sessions,
		users:    users,
		caches:   caches,
		config:   config,
		now:      time.Now,
		newID:    generateID,
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create はユーザーのセッションを発行し、セッションIDを返す。
// maxAgeが0以下の場合はデフォルトの有効期間を使い、MaxLifetimeを超える値は切り詰める。
func (s *Service) Create(ctx context.Context, userID string, maxAge time.Duration) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.lifetime(maxAge)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	start := time.Now()
	err = s.sessions.Insert(ctx, &session)
	s.metrics.RecordStoreLatency("insert", time.Since(start))
	if err != nil {
		return "", &PersistenceError{Op: "insert", Err: err}
	}

	s.caches.Sessions.Put(session)
	s.metrics.RecordSessionCreated()

	s.logger.Info("session created",
		slog.String("user_id", userID),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return id, nil
}

// Validate は有効なセッションを返す。無効な場合はnil, nilを返す。
//
// 判定順はブラックリスト、セッションキャッシュ、永続化ストアの順。
// キャッシュ上で期限切れと判明したセッションはその場でキャッシュから削除し、ストアは参照しない。
func (s *Service) Validate(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	if s.caches.Blacklist.Contains(id) {
		s.metrics.RecordCacheHit(metrics.CacheBlacklist)
		s.metrics.RecordValidation(metrics.OutcomeRevoked)
		s.logger.Debug("session rejected: revoked")
		return nil, nil
	}

	now := s.now()
	if entry, ok := s.caches.Sessions.Peek(id); ok {
		s.metrics.RecordCacheHit(metrics.CacheSession)
		if entry.Value.ActiveAt(now) {
			session := entry.Value
			s.metrics.RecordValidation(metrics.OutcomeValid)
			return &session, nil
		}
		s.caches.Sessions.Remove(id)
		s.metrics.RecordValidation(metrics.OutcomeInvalid)
		s.logger.Debug("session rejected: expired in cache")
		return nil, nil
	}
	s.metrics.RecordCacheMiss(metrics.CacheSession)

	start := time.Now()
	session, err := s.sessions.FindValid(ctx, id, now)
	s.metrics.RecordStoreLatency("find_valid", time.Since(start))
	if err != nil {
		s.metrics.RecordValidation(metrics.OutcomeError)
		return nil, &PersistenceError{Op: "find_valid", Err: err}
	}
	// ストアは expires_at >= now で返すが、ちょうど期限の行はキャッシュと同じく無効とみなす
	if session == nil || !session.ActiveAt(now) {
		s.metrics.RecordValidation(metrics.OutcomeInvalid)
		return nil, nil
	}

	s.caches.Sessions.Put(*session)
	s.metrics.RecordValidation(metrics.OutcomeValid)
	return session, nil
}

// ResolveUser はセッションを検証し、所有ユーザーと合わせて返す。
// セッションが無効、またはユーザーが存在しない場合はnil, nilを返す。
func (s *Service) ResolveUser(ctx context.Context, id string) (*Resolved, error) {
	session, err := s.Validate(ctx, id)
	if err != nil || session == nil {
		return nil, err
	}

	user, ok := s.caches.Users.Get(session.UserID)
	if ok {
		s.metrics.RecordCacheHit(metrics.CacheUser)
		return &Resolved{User: user, Session: *session}, nil
	}
	s.metrics.RecordCacheMiss(metrics.CacheUser)

	start := time.Now()
	found, err := s.users.FindByID(ctx, session.UserID)
	s.metrics.RecordStoreLatency("find_user", time.Since(start))
	if err != nil {
		return nil, &PersistenceError{Op: "find_user", Err: err}
	}
	if found == nil {
		s.logger.Warn("session owner not found", slog.String("user_id", session.UserID))
		return nil, nil
	}

	// 並行するDeleteAllForUserより前に読んだプロフィールを書き戻すことがある。
	// その場合もセッションはブラックリストで無効のままで、古いプロフィールはUSER_CACHE_TTLで消える。
	s.caches.Users.Put(*found)
	return &Resolved{User: *found, Session: *session}, nil
}

// Refresh はセッションの有効期限を now + maxAge に延長する。
// 該当するセッションがない場合や既に期限切れの場合はfalseを返し、キャッシュは変更しない。
// ブラックリストは参照も解除もしない。
func (s *Service) Refresh(ctx context.Context, id string, maxAge time.Duration) (bool, error) {
	if id == "" {
		return false, nil
	}

	now := s.now()
	expiresAt := now.Add(s.lifetime(maxAge))

	start := time.Now()
	updated, err := s.sessions.UpdateExpiry(ctx, id, expiresAt, now)
	s.metrics.RecordStoreLatency("update_expiry", time.Since(start))
	if err != nil {
		return false, &PersistenceError{Op: "update_expiry", Err: err}
	}
	if updated == nil {
		return false, nil
	}

	s.caches.Sessions.Put(*updated)
	return true, nil
}

// Delete はセッションを失効させる。何度呼んでも同じ結果になる。
//
// ブラックリスト登録、キャッシュ削除、ストア削除の順に行う。
// ストア削除が失敗した場合もエラーを返すが、失効は既に有効になっている。
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.revoke(id, s.now())
	s.caches.Sessions.Remove(id)
	s.metrics.RecordRevocations(1)

	start := time.Now()
	err := s.sessions.Delete(ctx, id)
	s.metrics.RecordStoreLatency("delete", time.Since(start))
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}

	s.logger.Info("session deleted")
	return nil
}

// DeleteAllForUser はユーザーの全セッションを失効させ、ユーザーキャッシュからも取り除く。
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	start := time.Now()
	ids, err := s.sessions.DeleteByUserID(ctx, userID)
	s.metrics.RecordStoreLatency("delete_by_user", time.Since(start))
	if err != nil {
		return &PersistenceError{Op: "delete_by_user", Err: err}
	}

	now := s.now()
	for _, id := range ids {
		s.revoke(id, now)
		s.caches.Sessions.Remove(id)
	}
	s.caches.Users.Remove(userID)
	s.metrics.RecordRevocations(len(ids))

	s.logger.Info("all sessions deleted for user",
		slog.String("user_id", userID),
		slog.Int("count", len(ids)),
	)
	return nil
}

// CleanupExpired は期限切れセッションをストアから一括削除し、対応するキャッシュエントリを取り除く。
// 削除した件数を返す。有効期限内のブラックリストエントリには触れない。
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	start := time.Now()
	deleted, err := s.sessions.DeleteExpired(ctx, s.now())
	s.metrics.RecordStoreLatency("delete_expired", time.Since(start))
	if err != nil {
		return 0, &PersistenceError{Op: "delete_expired", Err: err}
	}

	owners := make(map[string]struct{}, len(deleted))
	for _, e := range deleted {
		s.caches.Sessions.Remove(e.ID)
		owners[e.UserID] = struct{}{}
	}
	for userID := range owners {
		s.caches.Users.Remove(userID)
	}

	purged := s.caches.Sessions.Purge() + s.caches.Users.Purge() + s.caches.Blacklist.Purge()
	s.metrics.RecordExpiredSwept(len(deleted))

	s.logger.Info("expired sessions cleaned up",
		slog.Int("deleted", len(deleted)),
		slog.Int("cache_entries_purged", purged),
	)
	return len(deleted), nil
}

// lifetime はmaxAgeにデフォルト値と上限を適用する。
func (s *Service) lifetime(maxAge time.Duration) time.Duration {
	if maxAge <= 0 {
		maxAge = s.config.DefaultMaxAge
	}
	if maxAge > s.config.MaxLifetime {
		maxAge = s.config.MaxLifetime
	}
	return maxAge
}

// revoke はセッションIDをブラックリストに登録する。
// 保持期間はキャッシュ上の残り有効期間とMaxLifetimeの長い方で、失効が必ずセッションより長く残る。
func (s *Service) revoke(id string, now time.Time) {
	ttl := s.config.MaxLifetime
	if entry, ok := s.caches.Sessions.Peek(id); ok {
		if remaining := entry.Value.ExpiresAt.Sub(now); remaining > ttl {
			ttl = remaining
		}
	}
	s.caches.Blacklist.Revoke(id, ttl)
}
