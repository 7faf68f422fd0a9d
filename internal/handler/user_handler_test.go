package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ASTU-Final-Year/capstone-sub000/internal/model"
	"github.com/ASTU-Final-Year/capstone-sub000/internal/user"
)

type mockUserService struct {
	changePasswordFn func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func newTestUserHandler(svc UserServiceInterface) *UserHandler {
	return NewUserHandler(svc, NewAuthHandler(&mockAuthService{}, &mockSessions{}, testAuthConfig))
}

func TestUserHandler_ChangePassword_Success(t *testing.T) {
	var gotUser, gotCurrent, gotNew string
	svc := &mockUserService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			gotUser, gotCurrent, gotNew = userID, currentPassword, newPassword
			return nil
		},
	}
	h := newTestUserHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/password",
		strings.NewReader(`{"current_password":"old-password","new_password":"new-password"}`))
	req = withResolved(req, "sess-1", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if gotUser != testUser.ID || gotCurrent != "old-password" || gotNew != "new-password" {
		t.Errorf("ChangePassword called with (%q, %q, %q)", gotUser, gotCurrent, gotNew)
	}
	c := sessionCookie(resp)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestUserHandler_ChangePassword_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"current_password":`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"missing new password", `{"current_password":"old-password"}`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"too short", `{"current_password":"old-password","new_password":"short"}`, user.ErrPasswordTooShort, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"too long", `{"current_password":"old-password","new_password":"` + strings.Repeat("a", 80) + `"}`, user.ErrPasswordTooLong, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"wrong current", `{"current_password":"guess","new_password":"new-password"}`, user.ErrWrongPassword, http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"user gone", `{"current_password":"old-password","new_password":"new-password"}`, model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
		{"store failure", `{"current_password":"old-password","new_password":"new-password"}`, errors.New("db down"), http.StatusInternalServerError, model.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
					return tt.serviceErr
				},
			}
			h := newTestUserHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/users/me/password", strings.NewReader(tt.body))
			req = withResolved(req, "sess-1", time.Now().Add(time.Hour))
			w := httptest.NewRecorder()
			h.ChangePassword(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body := decodeError(t, resp); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if sessionCookie(resp) != nil {
				t.Error("session cookie should be untouched on failure")
			}
		})
	}
}

func TestUserHandler_ChangePassword_NoSession(t *testing.T) {
	h := newTestUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/password",
		strings.NewReader(`{"current_password":"old-password","new_password":"new-password"}`))
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_ChangePasswordRoute(t *testing.T) {
	called := false
	router := newTestRouter(t, &RouterDeps{
		UserService: &mockUserService{
			changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
				called = true
				return nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/password",
		strings.NewReader(`{"current_password":"old-password","new_password":"new-password"}`))
	req.Header.Set("Authorization", "Bearer sess-valid")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("ChangePassword should be called through the router")
	}
}

func TestRouter_ChangePasswordRouteAbsentWithoutService(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/password", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer sess-valid")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
