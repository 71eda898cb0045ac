package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/gateway"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_RedirectsPageWithoutCredential(t *testing.T) {
	guard := RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/move-opportunities", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q, want /login", loc)
	}
}

func TestRequireAuth_LoginPassesThroughRegardless(t *testing.T) {
	guard := RequireAuth(okHandler())

	for _, withCookie := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		if withCookie {
			req.AddCookie(&http.Cookie{Name: gateway.AuthCookie, Value: "tok"})
		}
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("withCookie=%v: status = %d, want 200", withCookie, rec.Code)
		}
	}
}

func TestRequireAuth_PublicAllowList(t *testing.T) {
	guard := RequireAuth(okHandler())

	for _, path := range []string{"/login", "/permission", "/terms", "/privacy"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("path %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRequireAuth_APIRoutesSelfAuthenticate(t *testing.T) {
	guard := RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/crypto/scan", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through for /api/*", rec.Code)
	}
}

func TestRequireAuth_CredentialCookiePasses(t *testing.T) {
	guard := RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/move-opportunities", nil)
	req.AddCookie(&http.Cookie{Name: gateway.AuthCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuth_EmptyCookieTreatedAsAbsent(t *testing.T) {
	guard := RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(&http.Cookie{Name: gateway.AuthCookie, Value: ""})
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
}

func TestRecover_TurnsPanicInto500(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/crypto/scan", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "internal_error") {
		t.Fatalf("body = %s", body)
	}
}
