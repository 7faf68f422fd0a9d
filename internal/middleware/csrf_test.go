package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethodsPassAndIssueCookie(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			w := httptest.NewRecorder()
			csrfHandler(t, &called).ServeHTTP(w, httptest.NewRequest(method, "/api/me", nil))

			if !called {
				t.Fatal("handler should have been called")
			}
			c := findCookie(w.Result(), csrfCookieName)
			if c == nil || len(c.Value) != 64 {
				t.Fatalf("csrf cookie = %+v, want 64 hex chars", c)
			}
			if c.HttpOnly {
				t.Error("csrf cookie must be readable from JavaScript")
			}
		})
	}
}

func TestCSRFMiddleware_ExistingCookieNotReissued(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()

	csrfHandler(t, &called).ServeHTTP(w, req)

	if findCookie(w.Result(), csrfCookieName) != nil {
		t.Error("existing csrf cookie should not be replaced")
	}
}

func TestCSRFMiddleware_CookieSessionPOST(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"matching tokens", "tok-1", "tok-1", http.StatusOK},
		{"missing cookie token", "", "tok-1", http.StatusForbidden},
		{"missing header token", "tok-1", "", http.StatusForbidden},
		{"mismatched tokens", "tok-1", "tok-2", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess"})
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			w := httptest.NewRecorder()

			csrfHandler(t, &called).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
			if tt.wantStatus == http.StatusForbidden {
				var body ErrorResponseBody
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("failed to parse body: %v", err)
				}
				if body.Code != "CSRF_TOKEN_INVALID" {
					t.Errorf("code = %q", body.Code)
				}
			}
		})
	}
}

func TestCSRFMiddleware_NoSessionCookieSkipsCheck(t *testing.T) {
	// ログイン前やBearerトークンのリクエストはブラウザが資格情報を自動送信しない
	called := false
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()

	csrfHandler(t, &called).ServeHTTP(w, req)

	if !called {
		t.Errorf("handler should be called, status = %d", w.Code)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{CookieSecure: true})

	t.Run("issues new token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		c := findCookie(w.Result(), csrfCookieName)
		if c == nil || c.Value != body["token"] {
			t.Errorf("cookie %+v does not match token %q", c, body["token"])
		}
		if !c.Secure {
			t.Error("cookie should be Secure")
		}
	})

	t.Run("returns existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "already-set"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if body["token"] != "already-set" {
			t.Errorf("token = %q, want already-set", body["token"])
		}
	})
}
