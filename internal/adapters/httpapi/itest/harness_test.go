package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aid-distribution/ticket-api/internal/adapters/contracttest"
	"github.com/aid-distribution/ticket-api/internal/adapters/csvtable"
	filerecordstore "github.com/aid-distribution/ticket-api/internal/adapters/file/recordstore"
	"github.com/aid-distribution/ticket-api/internal/adapters/httpapi"
	memclock "github.com/aid-distribution/ticket-api/internal/adapters/memory/clock"
	memidempotency "github.com/aid-distribution/ticket-api/internal/adapters/memory/idempotency"
	memrecordstore "github.com/aid-distribution/ticket-api/internal/adapters/memory/recordstore"
	pgidempotency "github.com/aid-distribution/ticket-api/internal/adapters/postgres/idempotency"
	pgrecordstore "github.com/aid-distribution/ticket-api/internal/adapters/postgres/recordstore"
	postgres_testutil "github.com/aid-distribution/ticket-api/internal/adapters/postgres/testutil"
	"github.com/aid-distribution/ticket-api/internal/app/distribution"
	idempotencyport "github.com/aid-distribution/ticket-api/internal/ports/out/idempotency"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendFile     backend = "file"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "file":
		return []backend{backendFile}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendFile, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|file|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	store   recordstore.Store
	// raw returns the persisted register bytes, for backends that have them.
	raw func(t *testing.T) []byte
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var (
		store     recordstore.Store
		idemStore idempotencyport.Store
		raw       func(t *testing.T) []byte
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		store = pgrecordstore.NewStore(pool, "itest-"+uuid.NewString())
		idemStore = pgidempotency.NewStoreWithTTL(pool, clk, time.Hour)
		if err := store.Save(ctx, contracttest.SampleTable()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	case backendFile:
		path := filepath.Join(t.TempDir(), "beneficiaries.csv")
		data, err := csvtable.Marshal(contracttest.SampleTable())
		if err != nil {
			t.Fatalf("marshal seed: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write seed: %v", err)
		}
		store = filerecordstore.NewStore(path)
		idemStore = memidempotency.NewStoreWithTTL(clk, time.Hour)
		raw = func(t *testing.T) []byte {
			t.Helper()
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read register: %v", err)
			}
			return b
		}
	case backendMemory:
		store = memrecordstore.NewSeededStore(contracttest.SampleTable())
		idemStore = memidempotency.NewStoreWithTTL(clk, time.Hour)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	svc := distribution.NewService(store, nil, nil)
	api := httpapi.NewServer(svc, idemStore, clk)
	handler := httpapi.NewRouter(api)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		raw:     raw,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

func (s *testServer) row(t *testing.T, code string) recordstore.Record {
	t.Helper()
	tbl, err := s.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, r := range tbl.Rows {
		if r["Ticket Code"] == code {
			return r
		}
	}
	t.Fatalf("ticket %q not in register", code)
	return nil
}

type apiResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Exists   *bool  `json:"exists"`
	Info     string `json:"info"`
	InfoType string `json:"info_type"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatusMessage(t *testing.T, status int, body []byte, wantStatus string, wantMessage string) apiResponse {
	t.Helper()
	if status != http.StatusOK {
		t.Fatalf("http status=%d want=200 body=%s", status, string(body))
	}
	got := mustUnmarshal[apiResponse](t, body)
	if got.Status != wantStatus || got.Message != wantMessage {
		t.Fatalf("got status=%q message=%q, want %q/%q", got.Status, got.Message, wantStatus, wantMessage)
	}
	return got
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}

func (s *testServer) doJSONWithKey(t *testing.T, path, key string, body any) (int, []byte, http.Header) {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.url(path), bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}
