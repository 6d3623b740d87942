package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/pokepay-go/internal/metrics"
	"github.com/alexbotov/pokepay-go/pkg/envelope"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

const (
	testClientID = "sandbox-partner"
	testSecret   = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY" // 32 bytes
	otherSecret  = "ZmVkY2JhOTg3NjU0MzIxMGZlZGNiYTk4NzY1NDMyMTA" // 32 bytes
)

var testAdminSecret = []byte("sandbox-admin-secret")

type testSandbox struct {
	srv     *Server
	ts      *httptest.Server
	metrics *metrics.Metrics
}

func newTestSandbox(t *testing.T, mutate ...func(*Config)) *testSandbox {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := Config{
		Clients:     map[string]string{testClientID: testSecret},
		AdminSecret: testAdminSecret,
		MaxSkew:     DefaultMaxSkew,
		Metrics:     m,
		Gatherer:    reg,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	srv, err := New(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.SetupRouter())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &testSandbox{srv: srv, ts: ts, metrics: m}
}

func (sb *testSandbox) client(t *testing.T, clientID, secret string) *pokepay.Client {
	t.Helper()
	c, err := pokepay.NewClient(&pokepay.ClientConfig{
		ClientID:     clientID,
		ClientSecret: secret,
		BaseURL:      sb.ts.URL,
		Timezone:     "UTC",
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func (sb *testSandbox) adminToken(t *testing.T) string {
	t.Helper()
	token, err := IssueAdminToken(testAdminSecret, "tester", time.Hour)
	require.NoError(t, err)
	return token
}

func TestSandbox_Echo(t *testing.T) {
	sb := newTestSandbox(t)
	client := sb.client(t, testClientID, testSecret)

	resp, err := client.Echo(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK)
	assert.Equal(t, "ok", resp.String("status"))
	assert.Equal(t, "hello", resp.String("message"))
	assert.Equal(t, 1.0, testutil.ToFloat64(sb.metrics.SandboxRequestsTotal.WithLabelValues("POST", "200")))
}

func TestSandbox_Fixture(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, sb.srv.Fixtures().Put(Fixture{
		Method: "GET",
		Path:   "/shops/{shop_id}",
		Reply: map[string]any{
			"id": "s1", "name": "Sandbox Shop", "organization_code": "org", "status": "active",
			"postal_code": nil, "address": nil, "tel": nil, "email": nil, "external_id": nil,
			"accounts": []any{},
		},
	}))
	client := sb.client(t, testClientID, testSecret)

	resp, err := client.Call(context.Background(), pokepay.OpGetShop, pokepay.Params{"shop_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Sandbox Shop", resp.String("name"))
	assert.Equal(t, 1.0, testutil.ToFloat64(sb.metrics.SandboxRequestsTotal.WithLabelValues("GET", "200")))
}

func TestSandbox_FixtureErrorStatus(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, sb.srv.Fixtures().Put(Fixture{
		Method: "POST",
		Path:   "/transactions",
		Status: http.StatusUnprocessableEntity,
		Reply:  map[string]any{"type": "invalid_parameters", "message": "Invalid parameters"},
	}))
	client := sb.client(t, testClientID, testSecret)

	resp, err := client.Call(context.Background(), pokepay.OpCreateTransaction, pokepay.Params{
		"shop_id": "s", "customer_id": "c", "private_money_id": "p",
	})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.False(t, resp.Decoded)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "invalid_parameters")
	assert.Equal(t, pokepay.KindProtocol, pokepay.ErrorKind(resp.Err()))
}

func TestSandbox_NoFixture(t *testing.T) {
	sb := newTestSandbox(t)
	client := sb.client(t, testClientID, testSecret)

	resp, err := client.Call(context.Background(), pokepay.OpGetCampaign, pokepay.Params{"campaign_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSandbox_UnknownClient(t *testing.T) {
	sb := newTestSandbox(t)
	client := sb.client(t, "someone-else", testSecret)

	resp, err := client.Echo(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(sb.metrics.SandboxRejected.WithLabelValues(ReasonUnknownClient)))
}

func TestSandbox_WrongKey(t *testing.T) {
	sb := newTestSandbox(t)
	client := sb.client(t, testClientID, otherSecret)

	resp, err := client.Echo(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// postEnvelope sends a hand-built call so tests control the envelope
func postEnvelope(t *testing.T, baseURL, path string, p envelope.Plaintext) *http.Response {
	t.Helper()
	key, err := envelope.ParseKey(testSecret)
	require.NoError(t, err)
	sealed, err := envelope.NewCipher(key).Seal(p)
	require.NoError(t, err)

	resp, err := http.PostForm(baseURL+path, url.Values{
		"partner_client_id": {testClientID},
		"data":              {sealed},
		"request_method":    {"POST"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSandbox_ReplayRejected(t *testing.T) {
	sb := newTestSandbox(t)
	p := envelope.NewPlaintext(map[string]any{"message": "once"}, time.UTC, time.Now())

	first := postEnvelope(t, sb.ts.URL, "/echo", p)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postEnvelope(t, sb.ts.URL, "/echo", p)
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	var apiErr APIError
	require.NoError(t, json.NewDecoder(second.Body).Decode(&apiErr))
	assert.Equal(t, ReasonReplay, apiErr.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(sb.metrics.SandboxReplays))
}

func TestSandbox_StaleTimestamp(t *testing.T) {
	sb := newTestSandbox(t)
	p := envelope.NewPlaintext(map[string]any{"message": "old"}, time.UTC, time.Now().Add(-time.Hour))

	resp := postEnvelope(t, sb.ts.URL, "/echo", p)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(sb.metrics.SandboxRejected.WithLabelValues(ReasonStale)))
}

func TestSandbox_SkewCheckDisabled(t *testing.T) {
	sb := newTestSandbox(t, func(c *Config) { c.MaxSkew = 0 })
	p := envelope.NewPlaintext(map[string]any{"message": "old"}, time.UTC, time.Now().Add(-time.Hour))

	resp := postEnvelope(t, sb.ts.URL, "/echo", p)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSandbox_GetIsNotAPartnerCall(t *testing.T) {
	sb := newTestSandbox(t)

	resp, err := http.Get(sb.ts.URL + "/echo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSandbox_Health(t *testing.T) {
	sb := newTestSandbox(t)

	resp, err := http.Get(sb.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, resp.StatusCode)
	assert.Equal(t, float64(1), body["clients"])
	assert.Contains(t, body, "rng")
}

func TestSandbox_Metrics(t *testing.T) {
	sb := newTestSandbox(t)
	client := sb.client(t, testClientID, testSecret)
	_, err := client.Echo(context.Background(), "count me")
	require.NoError(t, err)

	resp, err := http.Get(sb.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pokepay_sandbox_requests_total")
}

func TestSandbox_AdminFixturesAPI(t *testing.T) {
	sb := newTestSandbox(t)
	fixture := `{"method":"get","path":"/campaigns/{campaign_id}","reply":{"id":"c1"}}`

	// No token
	resp, err := http.Post(sb.ts.URL+"/_sandbox/fixtures", "application/json", strings.NewReader(fixture))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token
	req, err := http.NewRequest(http.MethodPost, sb.ts.URL+"/_sandbox/fixtures", strings.NewReader(fixture))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sb.adminToken(t))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	f, ok := sb.srv.Fixtures().Match("GET", "/campaigns/c1")
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, f.Status)

	// Invalid fixture
	req, err = http.NewRequest(http.MethodPost, sb.ts.URL+"/_sandbox/fixtures", bytes.NewBufferString(`{"method":"PUT","path":"/x"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sb.adminToken(t))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Clear
	req, err = http.NewRequest(http.MethodDelete, sb.ts.URL+"/_sandbox/fixtures", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sb.adminToken(t))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, sb.srv.Fixtures().List())
}

func TestSandbox_AdminDisabled(t *testing.T) {
	sb := newTestSandbox(t, func(c *Config) { c.AdminSecret = nil })

	resp, err := http.Get(sb.ts.URL + "/_sandbox/fixtures")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSandbox_EventStream(t *testing.T) {
	sb := newTestSandbox(t)

	wsURL := "ws" + strings.TrimPrefix(sb.ts.URL, "http") + "/_sandbox/events"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+sb.adminToken(t))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, EventConnected, hello.Type)
	assert.Equal(t, 1, sb.srv.Hub().Subscribers())

	client := sb.client(t, testClientID, testSecret)
	resp, err := client.Echo(context.Background(), "streamed")
	require.NoError(t, err)

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventCall, ev.Type)
	assert.Equal(t, testClientID, ev.ClientID)
	assert.Equal(t, resp.PartnerCallID, ev.PartnerCallID)
	assert.Equal(t, "/echo", ev.Path)
	assert.Equal(t, "streamed", ev.RequestData["message"])
}

func TestSandbox_EventStreamRequiresToken(t *testing.T) {
	sb := newTestSandbox(t)

	wsURL := "ws" + strings.TrimPrefix(sb.ts.URL, "http") + "/_sandbox/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Clients: map[string]string{"c": "short"}})
	assert.Error(t, err)
}
