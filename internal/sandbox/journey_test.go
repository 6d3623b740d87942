package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/pokepay-go/internal/journal"
	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/internal/metrics"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

// journeyServer wires a sandbox, a client and the client observers the way
// the command-line tool does
type journeyServer struct {
	Server  *httptest.Server
	Sandbox *Server
	Client  *pokepay.Client
	Metrics *metrics.Metrics
	Journal *journal.Store

	mu      sync.Mutex
	records []pokepay.CallRecord

	teardown func()
}

func newJourneyServer(t *testing.T) *journeyServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	srv, err := New(Config{
		Clients:     map[string]string{testClientID: testSecret},
		AdminSecret: testAdminSecret,
		MaxSkew:     DefaultMaxSkew,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)
	server := httptest.NewServer(srv.SetupRouter())

	js := &journeyServer{Server: server, Sandbox: srv, Metrics: m}
	observers := []pokepay.CallObserver{
		m,
		pokepay.CallObserverFunc(func(rec pokepay.CallRecord) {
			js.mu.Lock()
			js.records = append(js.records, rec)
			js.mu.Unlock()
		}),
	}

	// The journal needs Postgres; the rest of the journey runs without it
	if dsn := os.Getenv("POKEPAY_TEST_POSTGRES_DSN"); dsn != "" {
		store, err := journal.Open(context.Background(), dsn)
		require.NoError(t, err)
		require.NoError(t, store.Reset(context.Background()))
		require.NoError(t, store.Migrate(context.Background()))
		js.Journal = store
		observers = append(observers, store)
	}

	client, err := pokepay.NewClient(&pokepay.ClientConfig{
		ClientID:     testClientID,
		ClientSecret: testSecret,
		BaseURL:      server.URL,
		Timezone:     "UTC",
		Observers:    observers,
		Logger:       logging.Discard(),
	})
	require.NoError(t, err)
	js.Client = client

	js.teardown = func() {
		client.Close()
		server.Close()
		srv.Close()
		if js.Journal != nil {
			js.Journal.Close()
		}
	}
	return js
}

func (js *journeyServer) Close() {
	js.teardown()
}

func (js *journeyServer) putFixtures(t *testing.T, body string) {
	t.Helper()
	token, err := IssueAdminToken(testAdminSecret, "journey", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, js.Server.URL+"/_sandbox/fixtures", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (js *journeyServer) subscribe(t *testing.T) *websocket.Conn {
	t.Helper()
	token, err := IssueAdminToken(testAdminSecret, "journey", time.Hour)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(js.Server.URL, "http") + "/_sandbox/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, EventConnected, hello.Type)
	return conn
}

const journeyFixtures = `[
  {"method":"POST","path":"/bills","reply":{
    "id":"bill-1","amount":1500,"description":"lunch","account":{"id":"acc-1"},
    "is_disabled":false,"token":"bill-token"}},
  {"method":"GET","path":"/transactions/{transaction_id}","reply":{
    "id":"tx-1","type":"payment","is_modified":false,
    "sender":{"id":"user-1"},"sender_account":{"id":"acc-1"},
    "receiver":{"id":"shop-1"},"receiver_account":{"id":"acc-2"},
    "amount":9007199254740993,"money_amount":1500,"point_amount":0,
    "done_at":"2024-05-01T12:00:00.000000+09:00","description":"lunch"}},
  {"method":"GET","path":"/transactions-v2","reply":{
    "rows":[],"per_page":50,"count":0,"next_page_cursor_id":null}},
  {"method":"GET","path":"/shops/{shop_id}","status":404,"reply":{
    "type":"shop_not_found","message":"shop does not exist"}}
]`

// ============================================================================
// Complete Partner Journey
// ============================================================================

func TestCompletePartnerJourney(t *testing.T) {
	js := newJourneyServer(t)
	defer js.Close()
	ctx := context.Background()

	// Step 1: Connectivity
	t.Log("Step 1: Echo...")
	echo, err := js.Client.Echo(ctx, "journey")
	require.NoError(t, err)
	assert.Equal(t, "journey", echo.String("message"))

	// Step 2: Fixtures through the admin API
	t.Log("Step 2: Loading fixtures...")
	js.putFixtures(t, journeyFixtures)
	assert.Len(t, js.Sandbox.Fixtures().List(), 4)

	events := js.subscribe(t)
	defer events.Close()

	// Step 3: Create a bill
	t.Log("Step 3: Creating a bill...")
	bill, err := js.Client.Call(ctx, pokepay.OpCreateBill, pokepay.Params{
		"private_money_id": "pm-1",
		"shop_id":          "shop-1",
		"amount":           1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bill", bill.Shape)
	assert.Equal(t, "bill-token", bill.String("token"))

	var ev Event
	require.NoError(t, events.ReadJSON(&ev))
	assert.Equal(t, "/bills", ev.Path)
	assert.Equal(t, "pm-1", ev.RequestData["private_money_id"])

	// Step 4: Look up a transaction with an amount beyond float64 precision
	t.Log("Step 4: Fetching transaction...")
	tx, err := js.Client.Call(ctx, pokepay.OpGetTransaction, pokepay.Params{"transaction_id": "tx-1"})
	require.NoError(t, err)
	amount, err := tx.Int64("amount")
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), amount)
	require.NoError(t, events.ReadJSON(&ev))
	assert.Equal(t, "GET", ev.Method)

	// Step 5: List transactions with the start alias
	t.Log("Step 5: Listing transactions from a start date...")
	list, err := js.Client.Call(ctx, pokepay.OpListTransactionsV2, pokepay.Params{
		"start":    "2024-05-01T00:00:00+09:00",
		"per_page": 50,
	})
	require.NoError(t, err)
	assert.Empty(t, list.Slice("rows"))
	require.NoError(t, events.ReadJSON(&ev))
	assert.Equal(t, "2024-05-01T00:00:00+09:00", ev.RequestData["from"])
	assert.NotContains(t, ev.RequestData, "start")

	// Step 6: An error status comes back as a raw result
	t.Log("Step 6: Fetching a missing shop...")
	shop, err := js.Client.Call(ctx, pokepay.OpGetShop, pokepay.Params{"shop_id": "nope"})
	require.NoError(t, err)
	assert.False(t, shop.Decoded)
	assert.Equal(t, http.StatusNotFound, shop.StatusCode)
	assert.Contains(t, string(shop.Body), "shop_not_found")
	assert.Error(t, shop.Err())

	// Step 7: Observers saw every call exactly once
	t.Log("Step 7: Checking observers...")
	js.mu.Lock()
	records := append([]pokepay.CallRecord(nil), js.records...)
	js.mu.Unlock()
	require.Len(t, records, 5)
	ids := map[string]bool{}
	for _, rec := range records {
		assert.False(t, ids[rec.PartnerCallID], "duplicate call id %s", rec.PartnerCallID)
		ids[rec.PartnerCallID] = true
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(js.Metrics.CallsTotal.WithLabelValues(pokepay.OpCreateBill, "POST", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(js.Metrics.CallsTotal.WithLabelValues(pokepay.OpGetShop, "GET", "http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(js.Metrics.SandboxRequestsTotal.WithLabelValues("GET", "404")))

	// Step 8: Journal
	if js.Journal == nil {
		t.Log("Step 8: skipped, POKEPAY_TEST_POSTGRES_DSN not set")
		return
	}
	t.Log("Step 8: Reading the journal...")
	entries, err := js.Journal.Recent(ctx, &journal.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	failed, err := js.Journal.Recent(ctx, &journal.Filter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, pokepay.OpGetShop, failed[0].Operation)
}
