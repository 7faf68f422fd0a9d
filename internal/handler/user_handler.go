package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/middleware"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするアカウント操作。
type UserServiceInterface interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// UserHandler はユーザー自身のアカウント操作のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	auth    *AuthHandler
}

// NewUserHandler はUserHandlerを生成する。
// Cookieのクリアは認証ハンドラーと同じ設定で行う。
func NewUserHandler(service UserServiceInterface, authHandler *AuthHandler) *UserHandler {
	return &UserHandler{service: service, auth: authHandler}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword はログイン中ユーザーのパスワードを変更する。
// 成功すると全セッションが失効するため、このリクエストのCookieもクリアする。
// POST /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("current_passwordとnew_passwordは必須です"))
		return
	}

	err = h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var apiErr *model.APIError
		switch {
		case errors.Is(err, user.ErrPasswordTooShort):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("new_passwordは8文字以上にしてください"))
		case errors.Is(err, user.ErrPasswordTooLong):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("new_passwordは72バイト以内にしてください"))
		case errors.Is(err, user.ErrWrongPassword):
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound:
			middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
		default:
			slog.Error("failed to change password",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
		}
		return
	}

	h.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
