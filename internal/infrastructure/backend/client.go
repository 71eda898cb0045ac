// Package backend is the single outbound HTTP surface to the external
// scanning service. It does not interpret upstream responses beyond
// separating transport failures from HTTP-level outcomes; status policy
// belongs to the gateway and the proxy handlers.
package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Upstream endpoint paths.
const (
	PathScan   = "/crypto/scan"
	PathTop5   = "/crypto/top5"
	PathLogin  = "/auth/login"
	PathLogout = "/auth/logout"
)

// PathCoinHistory builds the history path for one coin.
func PathCoinHistory(id string) string {
	return "/crypto/coin/" + id + "/history"
}

// Request is one upstream call. Header carries the caller's credential in
// whatever transport the caller uses (Authorization header or cookie).
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// UpstreamResponse is the raw upstream outcome. Returned for every HTTP
// status; the error return is reserved for transport failures.
type UpstreamResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// OK reports a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
		})

	return &Client{http: client, logger: logger}
}

// Do forwards one request upstream. Credentials in req.Header are never
// logged.
func (c *Client) Do(ctx context.Context, req Request) (*UpstreamResponse, error) {
	r := c.http.R().SetContext(ctx)

	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
		if r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		c.logger.Warn("Upstream request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return nil, err
	}

	return &UpstreamResponse{
		Status:      resp.StatusCode(),
		Body:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}
