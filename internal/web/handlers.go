package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
	"github.com/coinsight/crypto_screener/internal/gateway"
	"github.com/coinsight/crypto_screener/internal/infrastructure/backend"
	"github.com/coinsight/crypto_screener/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// credentialFrom resolves the caller's credential: Authorization header
// first, then the auth cookie. The value is never logged.
func credentialFrom(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	cookie, err := r.Cookie(gateway.AuthCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func writeAuthRequired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": "Authentication required",
	})
}

func writeUpstreamUnreachable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "Scanner backend unreachable",
		"type":  "network_error",
	})
}

// relay writes the upstream response back verbatim. Non-2xx outcomes gain a
// diagnostic header but the original status and body always pass through.
func (s *Server) relay(w http.ResponseWriter, up *backend.UpstreamResponse) {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if !up.OK() {
		w.Header().Set("X-Upstream-Status", strconv.Itoa(up.Status))
	}
	w.WriteHeader(up.Status)
	_, _ = w.Write(up.Body)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	token, ok := credentialFrom(r)
	if !ok {
		writeAuthRequired(w)
		return
	}

	gen := s.cache.NextGeneration()
	up, err := s.backend.Do(r.Context(), backend.Request{
		Method: http.MethodGet,
		Path:   backend.PathScan,
		Header: bearerHeader(token),
	})
	if err != nil {
		writeUpstreamUnreachable(w)
		return
	}

	if up.OK() {
		if res, applied := s.cache.Update(r.Context(), up.Body, gen); applied {
			s.hub.BroadcastScan(res)
		}
	}

	s.relay(w, up)
}

func (s *Server) handleTop5(w http.ResponseWriter, r *http.Request) {
	token, ok := credentialFrom(r)
	if !ok {
		writeAuthRequired(w)
		return
	}

	up, err := s.backend.Do(r.Context(), backend.Request{
		Method: http.MethodGet,
		Path:   backend.PathTop5,
		Header: bearerHeader(token),
	})
	if err != nil {
		writeUpstreamUnreachable(w)
		return
	}

	s.relay(w, up)
}

func (s *Server) handleCoinHistory(w http.ResponseWriter, r *http.Request) {
	token, ok := credentialFrom(r)
	if !ok {
		writeAuthRequired(w)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Coin id is required",
		})
		return
	}

	up, err := s.backend.Do(r.Context(), backend.Request{
		Method: http.MethodGet,
		Path:   backend.PathCoinHistory(id),
		Header: bearerHeader(token),
	})
	if err != nil {
		writeUpstreamUnreachable(w)
		return
	}
	if !up.OK() {
		s.relay(w, up)
		return
	}

	series := usecase.NormalizeHistory(up.Body)
	if series.Dropped > 0 {
		s.logger.Warn("Dropped malformed history records",
			zap.String("coin", id),
			zap.Int("dropped", series.Dropped))
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleCachedScan(w http.ResponseWriter, r *http.Request) {
	if _, ok := credentialFrom(r); !ok {
		writeAuthRequired(w)
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		res := s.cache.Get()
		if res == nil {
			res = &domain.ScanResult{Data: []domain.Coin{}}
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	cat := domain.Category(category)
	if !cat.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Unknown category: " + category,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category": cat,
		"data":     s.cache.FilterByCategory(cat),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unreadable request body"})
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Username and password are required",
		})
		return
	}

	up, err := s.backend.Do(r.Context(), backend.Request{
		Method: http.MethodPost,
		Path:   backend.PathLogin,
		Body:   body,
	})
	if err != nil {
		writeUpstreamUnreachable(w)
		return
	}
	if !up.OK() {
		s.relay(w, up)
		return
	}

	var login struct {
		Token       string       `json:"token"`
		AccessToken string       `json:"access_token"`
		User        *domain.User `json:"user"`
	}
	if err := json.Unmarshal(up.Body, &login); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Malformed login response",
			"type":  "internal_error",
		})
		return
	}
	token := login.Token
	if token == "" {
		token = login.AccessToken
	}
	if token == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Login response carried no token",
			"type":  "internal_error",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     gateway.AuthCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if login.User != nil {
		if err := s.repo.SaveUser(r.Context(), login.User); err != nil {
			s.logger.Error("Failed to persist user profile", zap.Error(err))
		}
	}

	s.relay(w, up)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := credentialFrom(r); ok {
		// Best effort; local state is cleared regardless of the backend.
		if _, err := s.backend.Do(r.Context(), backend.Request{
			Method: http.MethodPost,
			Path:   backend.PathLogout,
			Header: bearerHeader(token),
		}); err != nil {
			s.logger.Warn("Backend logout failed", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     gateway.AuthCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	if err := s.cache.Clear(r.Context()); err != nil {
		s.logger.Error("Failed to clear scan cache on logout", zap.Error(err))
	}
	if err := s.repo.ClearUser(r.Context()); err != nil {
		s.logger.Error("Failed to clear user profile on logout", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.repo.LoadTheme(r.Context())
	if err != nil {
		s.logger.Error("Failed to load theme", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
			"type":  "internal_error",
		})
		return
	}
	if theme == "" {
		theme = domain.ThemeDark
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
		(payload.Theme != domain.ThemeDark && payload.Theme != domain.ThemeLight) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `Theme must be "dark" or "light"`,
		})
		return
	}

	if err := s.repo.SaveTheme(r.Context(), payload.Theme); err != nil {
		s.logger.Error("Failed to save theme", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
			"type":  "internal_error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"theme": payload.Theme})
}

// handlePage serves the SPA shell. The route guard has already run, so
// reaching here means the request is either public or carries a credential.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>Crypto Screener</title></head><body><div id=\"app\"></div></body></html>\n"))
}
