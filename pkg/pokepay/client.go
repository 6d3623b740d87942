package pokepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/internal/rng"
	"github.com/alexbotov/pokepay-go/pkg/envelope"
)

// Client is a Pokepay partner API client. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	cipher     *envelope.Cipher
	location   *time.Location
	aliases    map[string]string
	observers  []CallObserver
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new partner client. An https base URL requires a
// client certificate.
func NewClient(config *ClientConfig) (*Client, error) {
	cfg, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}

	certs, err := loadClientCertificate(cfg)
	if err != nil {
		return nil, err
	}
	if certs == nil && strings.HasPrefix(strings.ToLower(cfg.BaseURL), "https://") {
		return nil, &ConfigError{Field: "CertFile", Reason: "a client certificate is required for https"}
	}

	return newClient(cfg, newHTTPClient(cfg, certs))
}

// NewClientWithHTTPClient creates a new partner client with a custom HTTP
// client. TLS and timeouts are the caller's responsibility.
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) (*Client, error) {
	cfg, err := prepareConfig(config)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		return nil, &ConfigError{Field: "HTTPClient", Reason: "is nil"}
	}
	return newClient(cfg, httpClient)
}

func newClient(cfg *ClientConfig, httpClient *http.Client) (*Client, error) {
	key, err := envelope.ParseKey(cfg.ClientSecret)
	if err != nil {
		return nil, &ConfigError{Field: "ClientSecret", Reason: "invalid shared key", Err: err}
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "Timezone", Reason: fmt.Sprintf("unknown zone %q", cfg.Timezone), Err: err}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		cipher:     envelope.NewCipher(key, envelope.WithEntropy(cfg.Entropy)),
		location:   loc,
		aliases:    cfg.FieldAliases,
		observers:  cfg.Observers,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// prepareConfig copies config, fills defaults and checks required fields
func prepareConfig(config *ClientConfig) (*ClientConfig, error) {
	if config == nil {
		return nil, &ConfigError{Field: "ClientConfig", Reason: "is nil"}
	}
	cfg := *config

	if cfg.ClientID == "" {
		return nil, &ConfigError{Field: "ClientID", Reason: "is required"}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigError{Field: "ClientSecret", Reason: "is required"}
	}
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Field: "BaseURL", Reason: "is required"}
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ConfigError{Field: "BaseURL", Reason: "is not a valid URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{Field: "BaseURL", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Timeout < 0 {
		return nil, &ConfigError{Field: "Timeout", Reason: "must not be negative"}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConnectTimeout < 0 {
		return nil, &ConfigError{Field: "ConnectTimeout", Reason: "must not be negative"}
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.FieldAliases == nil {
		cfg.FieldAliases = DefaultFieldAliases
	}
	if cfg.Entropy == nil {
		cfg.Entropy = rng.New()
	}
	return &cfg, nil
}

// Send encrypts req, posts it and decrypts the reply.
//
// A non-2xx status is not an error: the returned Response has Decoded set to
// false and carries the transport result. On a ShapeError the Response is
// returned alongside the error with Data populated.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, &ParamError{Operation: "Send", Reason: "request is nil"}
	}

	started := c.now()
	plaintext := envelope.NewPlaintext(c.applyAliases(req.Body), c.location, started)
	rec := CallRecord{
		Operation:     req.Operation,
		Method:        req.Method,
		Path:          req.Path,
		PartnerCallID: plaintext.PartnerCallID,
		StartedAt:     started,
	}

	resp, err := c.send(ctx, req, plaintext)
	rec.Elapsed = time.Since(started)
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.OK = resp.OK
	}
	rec.Err = err
	c.notify(rec)

	attrs := []any{
		logging.Operation(rec.Operation),
		logging.Method(string(rec.Method)),
		logging.Path(rec.Path),
		logging.CallID(rec.PartnerCallID),
		logging.Status(rec.StatusCode),
		logging.Duration(rec.Elapsed),
	}
	if err != nil {
		c.logger.Debug("partner call failed", append(attrs, logging.Error(err))...)
	} else {
		c.logger.Debug("partner call", attrs...)
	}

	return resp, err
}

func (c *Client) send(ctx context.Context, req *Request, plaintext envelope.Plaintext) (*Response, error) {
	payload, err := json.Marshal(plaintext)
	if err != nil {
		return nil, &EnvelopeFormatError{Stage: StageRequest, Err: err}
	}
	data, err := c.cipher.Encrypt(string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt request: %w", err)
	}

	form := url.Values{}
	form.Set("partner_client_id", c.config.ClientID)
	form.Set("data", data)
	form.Set("request_method", string(req.Method))

	result, err := c.post(ctx, c.config.BaseURL+req.Path, form)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		TransportResult: *result,
		Operation:       req.Operation,
		PartnerCallID:   plaintext.PartnerCallID,
	}
	if req.Shape != nil {
		resp.Shape = req.Shape.Name
	}
	if !result.OK {
		return resp, nil
	}

	reply, err := c.openReply(result.Body)
	if err != nil {
		return nil, err
	}
	resp.Decoded = true
	resp.Data = reply

	fields, err := req.Shape.Project(reply)
	if err != nil {
		return resp, err
	}
	resp.Fields = fields
	return resp, nil
}

// post sends the form and reads the whole body under the read timeout
func (c *Client) post(ctx context.Context, target string, form url.Values) (*TransportResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "create request", URL: target, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: target, Timeout: isTimeout(err), Err: err}
	}
	defer httpResp.Body.Close()

	var timedOut atomic.Bool
	timer := time.AfterFunc(c.config.Timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	body, err := io.ReadAll(httpResp.Body)
	timer.Stop()
	if err != nil {
		return nil, &TransportError{Op: "read response", URL: target, Timeout: timedOut.Load() || isTimeout(err), Err: err}
	}

	finalURL := target
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	return &TransportResult{
		StatusCode: httpResp.StatusCode,
		OK:         httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Header:     httpResp.Header,
		Elapsed:    time.Since(start),
		URL:        finalURL,
		Body:       body,
	}, nil
}

// openReply parses the server envelope and decrypts response_data
func (c *Client) openReply(body []byte) (map[string]any, error) {
	var outer map[string]any
	if err := decodeJSON(body, &outer); err != nil {
		return nil, &EnvelopeFormatError{Stage: StageResponse, Err: err}
	}
	ciphertext, ok := outer["response_data"].(string)
	if !ok {
		return nil, &EnvelopeFormatError{Stage: StageResponse, Err: ErrMissingResponseData}
	}

	text, err := c.cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	var reply map[string]any
	if err := decodeJSON([]byte(text), &reply); err != nil {
		return nil, &EnvelopeFormatError{Stage: StageReply, Err: err}
	}
	if reply == nil {
		return nil, &EnvelopeFormatError{Stage: StageReply, Err: errors.New("reply is not a JSON object")}
	}
	return reply, nil
}

func (c *Client) applyAliases(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	for from, to := range c.aliases {
		if v, ok := out[from]; ok {
			delete(out, from)
			out[to] = v
		}
	}
	return out
}

func (c *Client) notify(rec CallRecord) {
	for _, o := range c.observers {
		o.ObserveCall(rec)
	}
}

// Call builds a request for the named operation and sends it
func (c *Client) Call(ctx context.Context, operation string, params Params) (*Response, error) {
	req, err := NewRequest(operation, params)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// Echo sends message to the echo endpoint, the usual connectivity check
func (c *Client) Echo(ctx context.Context, message string) (*Response, error) {
	return c.Call(ctx, OpSendEcho, Params{"message": message})
}

// Close releases idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
