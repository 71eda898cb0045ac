package gateway

import (
	"net/http"
	"sync"
)

// AuthCookie is the HTTP-only cookie carrying the bearer credential.
const AuthCookie = "auth_token"

// TokenStore is the single place of record for the credential. Created at
// login, read on every outbound request, destroyed on logout or 401.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

func (s *TokenStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// CredentialSource decides how the credential is attached to an outbound
// request. One gateway parameterized by source replaces the two duplicated
// cookie- and header-based clients that drifted apart in earlier versions.
type CredentialSource interface {
	// Apply attaches the credential to h, reporting whether one was held.
	Apply(h http.Header) bool
	// Clear destroys the credential of record.
	Clear()
}

// HeaderSource sends the credential as an Authorization bearer header.
type HeaderSource struct {
	Store *TokenStore
}

func (s *HeaderSource) Apply(h http.Header) bool {
	token, ok := s.Store.Get()
	if !ok {
		return false
	}
	h.Set("Authorization", "Bearer "+token)
	return true
}

func (s *HeaderSource) Clear() { s.Store.Clear() }

// CookieSource sends the credential as the auth cookie.
type CookieSource struct {
	Store *TokenStore
}

func (s *CookieSource) Apply(h http.Header) bool {
	token, ok := s.Store.Get()
	if !ok {
		return false
	}
	cookie := http.Cookie{Name: AuthCookie, Value: token}
	h.Add("Cookie", cookie.String())
	return true
}

func (s *CookieSource) Clear() { s.Store.Clear() }
