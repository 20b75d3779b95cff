package connection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/infra/buildinfo"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// maxEnvelopeSize caps how much of a response body DecodeEnvelope reads.
const maxEnvelopeSize = 4 << 20

// Config configures an HTTPClient.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api.
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// CAFile is an optional PEM bundle added to the system roots.
	CAFile string

	// Transport overrides the round tripper (tests).
	Transport http.RoundTripper
}

// HTTPClient provides HTTP communication with the API server.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rt := cfg.Transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.CAFile != "" {
			tlsCfg, err := tlsConfigWithCA(cfg.CAFile)
			if err != nil {
				return nil, err
			}
			t.TLSClientConfig = tlsCfg
		}
		rt = t
	}

	return &HTTPClient{
		baseURL:   NormalizeBaseURL(cfg.BaseURL),
		userAgent: buildinfo.UserAgent(),
		client: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
	}, nil
}

// NormalizeBaseURL adds http:// when no scheme is given and strips trailing
// slashes so paths can be appended directly.
func NormalizeBaseURL(server string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		return ""
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return strings.TrimRight(server, "/")
}

// Do sends req. The User-Agent is set unless the caller already chose one.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.client.Do(req)
}

// BaseURL returns the normalised base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// DecodeEnvelope decodes an API envelope from resp and closes the body.
// An empty body yields an empty envelope.
func DecodeEnvelope(resp *http.Response) (*domain.Envelope, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	env := &domain.Envelope{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, domain.ErrMalformedEnvelope.WithCause(err)
	}
	return env, nil
}

// Drain discards the rest of a body and closes it so the connection can be
// reused.
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxEnvelopeSize))
	resp.Body.Close()
}

// StatusError describes a non-2xx response for CLI output.
func StatusError(resp *http.Response) error {
	defer resp.Body.Close()

	var errResp struct {
		Code    any    `json:"code"`
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err := json.Unmarshal(raw, &errResp); err == nil {
		msg := errResp.Msg
		if msg == "" {
			msg = errResp.Message
		}
		if msg != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, msg)
		}
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}
