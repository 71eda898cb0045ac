// Package gateway is the one request path every dashboard-originated call
// goes through. It classifies each failure exactly once, emits the single
// user-facing toast for it, and owns the session-expiry side effects
// (credential wipe, cache wipe, login redirect).
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
	"github.com/coinsight/crypto_screener/internal/infrastructure/backend"
)

const (
	LoginPath = "/login"

	// Delay before the post-401 redirect, so the expiry toast gets a
	// chance to render first.
	DefaultRedirectDelay = 1500 * time.Millisecond
)

// CacheClearer is the slice of the scan cache the gateway needs on 401.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

type Gateway struct {
	client   *backend.Client
	source   CredentialSource
	cache    CacheClearer
	notifier domain.Notifier
	navigate domain.NavigateFunc
	delay    time.Duration
	logger   *zap.Logger

	mu            sync.Mutex
	redirectArmed bool
}

// New wires a gateway. navigate may be nil, in which case redirects are
// logged and dropped; callers that can actually move the user must inject
// the capability here rather than bind it later.
func New(
	client *backend.Client,
	source CredentialSource,
	cache CacheClearer,
	notifier domain.Notifier,
	navigate domain.NavigateFunc,
	delay time.Duration,
	logger *zap.Logger,
) *Gateway {
	g := &Gateway{
		client:   client,
		source:   source,
		cache:    cache,
		notifier: notifier,
		navigate: navigate,
		delay:    delay,
		logger:   logger,
	}
	if g.delay <= 0 {
		g.delay = DefaultRedirectDelay
	}
	if g.navigate == nil {
		g.navigate = func(path string) {
			logger.Warn("No navigation target bound, dropping redirect", zap.String("path", path))
		}
	}
	return g
}

// Get performs an authenticated GET against the backend.
func (g *Gateway) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return g.Do(ctx, http.MethodGet, endpoint, nil)
}

// Do performs one request and applies the status policy. On failure the
// returned error is always a *domain.APIError, and exactly one toast has
// already been emitted; callers must not notify again.
func (g *Gateway) Do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	header := http.Header{}
	g.source.Apply(header)

	up, err := g.client.Do(ctx, backend.Request{
		Method: method,
		Path:   endpoint,
		Header: header,
		Body:   body,
	})
	if err != nil {
		g.notifier.Notify(domain.NoticeError, "Network error. Check your connection and try again.")
		return nil, &domain.APIError{
			Kind:    domain.KindNetworkError,
			Message: "network error",
			Err:     err,
		}
	}

	switch {
	case up.Status == http.StatusUnauthorized:
		g.expireSession(ctx)
		return nil, &domain.APIError{
			Kind:    domain.KindSessionExpired,
			Status:  up.Status,
			Message: "session expired",
		}

	case up.Status == http.StatusForbidden:
		g.notifier.Notify(domain.NoticeError, "You don't have permission to perform this action.")
		return nil, &domain.APIError{
			Kind:    domain.KindForbidden,
			Status:  up.Status,
			Message: "forbidden",
		}

	case up.Status == http.StatusTooManyRequests:
		g.notifier.Notify(domain.NoticeWarn, "Too many requests. Please slow down.")
		return nil, &domain.APIError{
			Kind:    domain.KindRateLimited,
			Status:  up.Status,
			Message: "rate limited",
		}

	case up.Status >= http.StatusInternalServerError:
		g.notifier.Notify(domain.NoticeError, "Server error. Please try again later.")
		return nil, &domain.APIError{
			Kind:    domain.KindServerError,
			Status:  up.Status,
			Message: "server error",
		}

	case !up.OK():
		msg := errorMessage(up.Body)
		g.notifier.Notify(domain.NoticeError, msg)
		return nil, &domain.APIError{
			Kind:    domain.KindRequestFailed,
			Status:  up.Status,
			Message: msg,
		}
	}

	if !json.Valid(up.Body) {
		msg := strings.TrimSpace(string(up.Body))
		g.notifier.Notify(domain.NoticeError, "Received an unreadable response from the server.")
		return nil, &domain.APIError{
			Kind:    domain.KindRequestFailed,
			Status:  up.Status,
			Message: msg,
		}
	}

	return json.RawMessage(up.Body), nil
}

// expireSession runs the 401 policy: one toast, credential and cache wiped,
// one delayed login redirect. The toast here replaces the generic failure
// toast.
func (g *Gateway) expireSession(ctx context.Context) {
	g.notifier.Notify(domain.NoticeWarn, "Your session has expired. Please log in again.")

	g.source.Clear()
	if err := g.cache.Clear(ctx); err != nil {
		g.logger.Error("Failed to clear scan cache on session expiry", zap.Error(err))
	}

	g.scheduleLoginRedirect()
}

// scheduleLoginRedirect arms at most one pending redirect. Repeated 401s
// before the delay elapses collapse into a single navigation.
func (g *Gateway) scheduleLoginRedirect() {
	g.mu.Lock()
	if g.redirectArmed {
		g.mu.Unlock()
		return
	}
	g.redirectArmed = true
	g.mu.Unlock()

	time.AfterFunc(g.delay, func() {
		g.navigate(LoginPath)

		g.mu.Lock()
		g.redirectArmed = false
		g.mu.Unlock()
	})
}

// errorMessage pulls a presentable message out of an error body, tolerating
// non-JSON payloads.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return "Request failed"
}
