package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
	"github.com/coinsight/crypto_screener/internal/infrastructure/backend"
)

type mockNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (m *mockNotifier) Notify(level, message string) {
	m.mu.Lock()
	m.toasts = append(m.toasts, level+": "+message)
	m.mu.Unlock()
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

type mockCache struct {
	cleared atomic.Int32
}

func (m *mockCache) Clear(ctx context.Context) error {
	m.cleared.Add(1)
	return nil
}

type fixture struct {
	gw       *Gateway
	store    *TokenStore
	notifier *mockNotifier
	cache    *mockCache
	navCount *atomic.Int32
}

func newFixture(t *testing.T, upstream http.HandlerFunc) (*fixture, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(upstream)
	t.Cleanup(ts.Close)

	store := NewTokenStore("tok-1")
	notifier := &mockNotifier{}
	cache := &mockCache{}
	var navCount atomic.Int32

	client := backend.NewClient(ts.URL, 2*time.Second, zap.NewNop())
	gw := New(
		client,
		&HeaderSource{Store: store},
		cache,
		notifier,
		func(path string) {
			if path == LoginPath {
				navCount.Add(1)
			}
		},
		20*time.Millisecond,
		zap.NewNop(),
	)

	return &fixture{gw: gw, store: store, notifier: notifier, cache: cache, navCount: &navCount}, ts
}

func TestGateway_AttachesBearerCredential(t *testing.T) {
	var gotAuth string
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	})

	raw, err := f.gw.Get(context.Background(), "/crypto/scan")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", raw)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("success must not toast, got %v", f.notifier.toasts)
	}
}

func TestGateway_OmitsHeaderWithoutCredential(t *testing.T) {
	var gotAuth string
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})
	f.store.Clear()

	if _, err := f.gw.Get(context.Background(), "/crypto/scan"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestGateway_SessionExpiredPolicy(t *testing.T) {
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.gw.Get(context.Background(), "/crypto/scan")
	if !domain.IsKind(err, domain.KindSessionExpired) {
		t.Fatalf("expected SessionExpired, got %v", err)
	}

	if f.cache.cleared.Load() != 1 {
		t.Fatal("cache must be cleared on 401")
	}
	if _, ok := f.store.Get(); ok {
		t.Fatal("credential must be destroyed on 401")
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected exactly one toast, got %v", f.notifier.toasts)
	}

	time.Sleep(100 * time.Millisecond)
	if n := f.navCount.Load(); n != 1 {
		t.Fatalf("expected exactly one /login navigation, got %d", n)
	}
}

func TestGateway_Repeated401sCollapseToOneRedirect(t *testing.T) {
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 3; i++ {
		_, _ = f.gw.Get(context.Background(), "/crypto/scan")
	}

	time.Sleep(100 * time.Millisecond)
	if n := f.navCount.Load(); n != 1 {
		t.Fatalf("redirects not collapsed: %d", n)
	}
}

func TestGateway_StatusTaxonomy(t *testing.T) {
	cases := []struct {
		status    int
		kind      domain.ErrorKind
		retryable bool
	}{
		{http.StatusForbidden, domain.KindForbidden, false},
		{http.StatusTooManyRequests, domain.KindRateLimited, true},
		{http.StatusInternalServerError, domain.KindServerError, true},
		{http.StatusBadGateway, domain.KindServerError, true},
	}

	for _, tc := range cases {
		f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := f.gw.Get(context.Background(), "/crypto/scan")
		if !domain.IsKind(err, tc.kind) {
			t.Fatalf("status %d: expected kind %v, got %v", tc.status, tc.kind, err)
		}

		var apiErr *domain.APIError
		if ok := errors.As(err, &apiErr); !ok || apiErr.Retryable() != tc.retryable {
			t.Fatalf("status %d: retryable = %v, want %v", tc.status, apiErr.Retryable(), tc.retryable)
		}
		if f.notifier.count() != 1 {
			t.Fatalf("status %d: expected one toast, got %v", tc.status, f.notifier.toasts)
		}
	}
}

func TestGateway_RequestFailedCarriesBodyMessage(t *testing.T) {
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Coin not found"}`))
	})

	_, err := f.gw.Get(context.Background(), "/crypto/coin/nope/history")
	if !domain.IsKind(err, domain.KindRequestFailed) {
		t.Fatalf("expected RequestFailed, got %v", err)
	}

	var apiErr *domain.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "Coin not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestGateway_ToleratesNonJSONErrorBody(t *testing.T) {
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("plain text failure"))
	})

	_, err := f.gw.Get(context.Background(), "/crypto/scan")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "plain text failure" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGateway_OKWithUnparsableJSON(t *testing.T) {
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	})

	_, err := f.gw.Get(context.Background(), "/crypto/scan")
	if !domain.IsKind(err, domain.KindRequestFailed) {
		t.Fatalf("expected RequestFailed, got %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one toast, got %v", f.notifier.toasts)
	}
}

func TestGateway_NetworkErrorDistinguished(t *testing.T) {
	f, ts := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close()

	_, err := f.gw.Get(context.Background(), "/crypto/scan")
	if !domain.IsKind(err, domain.KindNetworkError) {
		t.Fatalf("expected NetworkError, got %v", err)
	}

	var apiErr *domain.APIError
	errors.As(err, &apiErr)
	if !apiErr.Retryable() {
		t.Fatal("network errors must offer a retry affordance")
	}
	if f.cache.cleared.Load() != 0 {
		t.Fatal("network failure must not clear the session")
	}
}

func TestGateway_CookieSourceSendsAuthCookie(t *testing.T) {
	var gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(AuthCookie); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	store := NewTokenStore("cookie-tok")
	client := backend.NewClient(ts.URL, time.Second, zap.NewNop())
	gw := New(client, &CookieSource{Store: store}, &mockCache{}, &mockNotifier{}, nil, 0, zap.NewNop())

	if _, err := gw.Get(context.Background(), "/crypto/scan"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotCookie != "cookie-tok" {
		t.Fatalf("auth cookie = %q", gotCookie)
	}
}
