package journal

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

func TestBuildQuery_NoFilter(t *testing.T) {
	query, args := buildQuery(nil)

	if !strings.Contains(query, "ORDER BY started_at DESC LIMIT $1") {
		t.Errorf("Expected default ordering and limit, got %s", query)
	}
	if len(args) != 1 || args[0] != DefaultLimit {
		t.Errorf("Expected [%d], got %v", DefaultLimit, args)
	}
}

func TestBuildQuery_AllFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	query, args := buildQuery(&Filter{
		Operation:  "GetShop",
		ErrorKind:  "transport",
		FailedOnly: true,
		From:       from,
		To:         to,
		Limit:      10,
	})

	for _, want := range []string{
		"operation = $1",
		"error_kind = $2",
		"(ok = FALSE OR error_kind <> '')",
		"started_at >= $3",
		"started_at <= $4",
		"LIMIT $5",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("Expected query to contain %q, got %s", want, query)
		}
	}
	if len(args) != 5 {
		t.Fatalf("Expected 5 args, got %d", len(args))
	}
	if args[0] != "GetShop" || args[1] != "transport" || args[4] != 10 {
		t.Errorf("Unexpected args %v", args)
	}
}

func TestEntryFromRecord(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	rec := pokepay.CallRecord{
		Operation:     "SendEcho",
		Method:        pokepay.MethodPost,
		Path:          "/echo",
		PartnerCallID: uuid.NewString(),
		StartedAt:     started,
		Elapsed:       1500 * time.Millisecond,
		Err:           &pokepay.TransportError{Op: "POST", URL: "http://x/echo", Err: errors.New("refused")},
	}

	e := EntryFromRecord(rec)
	if e.ID == "" {
		t.Error("Expected generated id")
	}
	if e.ElapsedMS != 1500 {
		t.Errorf("Expected 1500ms, got %d", e.ElapsedMS)
	}
	if e.ErrorKind != pokepay.KindTransport {
		t.Errorf("Expected kind transport, got %s", e.ErrorKind)
	}
	if e.StartedAt.Location() != time.UTC || !e.StartedAt.Equal(started) {
		t.Errorf("Expected UTC start time equal to %v, got %v", started, e.StartedAt)
	}
}

// openTestStore connects to the database named by POKEPAY_TEST_POSTGRES_DSN
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POKEPAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POKEPAY_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() {
		store.Reset(context.Background())
		store.Close()
	})
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	store.ObserveCall(pokepay.CallRecord{
		Operation: "SendEcho", Method: pokepay.MethodPost, Path: "/echo",
		PartnerCallID: uuid.NewString(), StartedAt: base.Add(-time.Minute), StatusCode: 200, OK: true,
	})
	store.ObserveCall(pokepay.CallRecord{
		Operation: "GetShop", Method: pokepay.MethodGet, Path: "/shops/s1",
		PartnerCallID: uuid.NewString(), StartedAt: base, StatusCode: 404,
	})

	entries, err := store.Recent(ctx, nil)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "GetShop" {
		t.Errorf("Expected newest first, got %s", entries[0].Operation)
	}

	failed, err := store.Recent(ctx, &Filter{FailedOnly: true})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(failed) != 1 || failed[0].StatusCode != 404 {
		t.Errorf("Expected only the 404 call, got %+v", failed)
	}
}

func TestStore_DuplicateCallIDRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	if err := store.Record(ctx, &Entry{PartnerCallID: id, Operation: "SendEcho", Method: "POST", Path: "/echo"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, &Entry{PartnerCallID: id, Operation: "SendEcho", Method: "POST", Path: "/echo"}); err == nil {
		t.Error("Expected duplicate partner_call_id to be rejected")
	}
}
