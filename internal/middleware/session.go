// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey    = contextKey("user_id")
	userContextKey      = contextKey("user")
	sessionIDContextKey = contextKey("session_id")
	expiresAtContextKey = contextKey("session_expires_at")
)

// SessionResolver はセッションIDから所有ユーザーを解決する。
// session.Serviceが実装する。
type SessionResolver interface {
	ResolveUser(ctx context.Context, id string) (*session.Resolved, error)
}

// NewSessionMiddleware はCookieまたはAuthorizationヘッダーからセッションIDを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーとセッションIDをリクエストコンテキストに注入する。
// 無効なセッションには401、永続化ストアの障害には500を返す。
// loggerがnilの場合はslog.Default()を使う。
func NewSessionMiddleware(resolver SessionResolver, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			resolved, err := resolver.ResolveUser(r.Context(), sessionID)
			if err != nil {
				logger.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if resolved == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionNotFoundError())
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, userIDContextKey, resolved.User.ID)
			ctx = context.WithValue(ctx, userContextKey, resolved.User)
			ctx = context.WithValue(ctx, sessionIDContextKey, resolved.Session.ID)
			ctx = context.WithValue(ctx, expiresAtContextKey, resolved.Session.ExpiresAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromRequest はセッションIDをCookie、次にBearerトークンの順で取り出す。
// どちらもない場合は空文字を返す。
func SessionIDFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

// bearerToken は Authorization: Bearer <token> からトークンを取り出す。
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userContextKey).(model.User)
	return user, ok
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// SessionExpiryFromContext はリクエストコンテキストからセッションの有効期限を取得する。
func SessionExpiryFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(expiresAtContextKey).(time.Time)
	return t, ok
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithResolved はコンテキストにセッション解決結果を注入する。テスト用。
func ContextWithResolved(ctx context.Context, r session.Resolved) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, r.User.ID)
	ctx = context.WithValue(ctx, userContextKey, r.User)
	ctx = context.WithValue(ctx, sessionIDContextKey, r.Session.ID)
	return context.WithValue(ctx, expiresAtContextKey, r.Session.ExpiresAt)
}
