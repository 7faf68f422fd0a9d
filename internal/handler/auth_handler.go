// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/auth"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/middleware"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
)

// maxLoginBodyBytes はログインリクエストボディの上限。
const maxLoginBodyBytes = 4 << 10

// AuthServiceInterface は認証ハンドラーが必要とするログイン処理。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// SessionServiceInterface はハンドラーとセッションミドルウェアが必要とするセッション操作。
// session.Serviceが実装する。
type SessionServiceInterface interface {
	middleware.SessionResolver
	Validate(ctx context.Context, id string) (*model.Session, error)
	Refresh(ctx context.Context, id string, maxAge time.Duration) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge time.Duration // セッションCookieの有効期間
}

// AuthHandler はログインとセッション管理のHTTPハンドラー。
type AuthHandler struct {
	auth     AuthServiceInterface
	sessions SessionServiceInterface
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, sessions SessionServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		config:   config,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Gender   string `json:"gender,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type meResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type refreshResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Fullname: u.Fullname,
		Email:    u.Email,
		Gender:   string(u.Gender),
		Phone:    u.Phone,
	}
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("emailとpasswordは必須です"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.setSessionCookie(w, result.SessionID)
	writeJSON(w, http.StatusOK, toUserResponse(result.User))
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		// 削除に失敗してもブラックリストには登録済みなのでCookieはクリアする
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザーとセッションの有効期限を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	expiresAt, _ := middleware.SessionExpiryFromContext(r.Context())

	writeJSON(w, http.StatusOK, meResponse{
		User:      toUserResponse(user),
		ExpiresAt: expiresAt.UTC(),
	})
}

// Refresh は現在のセッションの有効期限を延長する。
// POST /api/sessions/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	refreshed, err := h.sessions.Refresh(r.Context(), sessionID, h.config.SessionMaxAge)
	if err != nil {
		slog.Error("failed to refresh session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if !refreshed {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionNotFoundError())
		return
	}

	sess, err := h.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to read refreshed session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionNotFoundError())
		return
	}

	h.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, refreshResponse{ExpiresAt: sess.ExpiresAt.UTC()})
}

// LogoutAll は現在のユーザーの全セッションを破棄する。
// POST /api/sessions/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.sessions.DeleteAllForUser(r.Context(), userID); err != nil {
		slog.Error("failed to delete all sessions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
