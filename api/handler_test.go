package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-record-catalog/api"
	"github.com/goliatone/go-record-catalog/cache"
	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/goliatone/go-record-catalog/internal/cacheinfra"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/goliatone/go-record-catalog/musicbrainz"
	"github.com/goliatone/go-record-catalog/pkg/testsupport"
	"github.com/goliatone/go-record-catalog/query"
	"github.com/goliatone/go-record-catalog/records"
	"github.com/rs/zerolog"
)

type testEnv struct {
	engine  *gin.Engine
	records *testsupport.MemoryRecordStore
	orders  *testsupport.MemoryOrderStore
}

func newTestEnv(t *testing.T, pinger api.Pinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recordStore := testsupport.NewMemoryRecordStore(testsupport.SampleRecords(t)...)
	orderStore := testsupport.NewMemoryOrderStore()

	cacheStore, err := cacheinfra.NewSturdycStore(cacheinfra.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSturdycStore() failed: %v", err)
	}

	lister := listing.New(
		query.NewExecutor(recordStore, zerolog.Nop()),
		cache.NewService(cacheStore, cache.DefaultTTL),
		cache.NewDefaultKeySerializer(),
	)
	h := api.NewHandler(
		lister,
		records.NewService(recordStore, nil, zerolog.Nop()),
		records.NewOrderService(orderStore, recordStore, zerolog.Nop()),
		pinger,
	)

	return &testEnv{
		engine:  api.NewRouter(h, zerolog.Nop()),
		records: recordStore,
		orders:  orderStore,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) listing.Page {
	t.Helper()
	var page listing.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v (body=%s)", err, w.Body.String())
	}
	return page
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorPayload {
	t.Helper()
	var payload api.ErrorPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v (body=%s)", err, w.Body.String())
	}
	return payload
}

func TestListRecords_WalksPages(t *testing.T) {
	env := newTestEnv(t, nil)

	target := "/records"
	var sizes []int
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("page %d: expected 200, got %d body=%s", i, w.Code, w.Body.String())
		}
		page := decodePage(t, w)
		sizes = append(sizes, len(page.Records))
		for _, r := range page.Records {
			if seen[r.ID] {
				t.Fatalf("record %s returned twice", r.ID)
			}
			seen[r.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		target = "/records?next=" + url.QueryEscape(page.NextCursor)
	}

	want := []int{5, 3, 0}
	if len(sizes) != len(want) {
		t.Fatalf("expected page sizes %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("expected page sizes %v, got %v", want, sizes)
		}
	}
	if len(seen) != 8 {
		t.Fatalf("expected all 8 records, saw %d", len(seen))
	}
}

func TestListRecords_EmptyPageHasDataArray(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/records?artist=Nobody", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["data"]) != "[]" {
		t.Fatalf("expected an empty data array, got %s", raw["data"])
	}
	if _, ok := raw["nextCursor"]; ok {
		t.Fatalf("expected no nextCursor on an empty page, got %s", w.Body.String())
	}
}

func TestListRecords_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"artist", "artist=Nirvana", 3},
		{"artist and format", "artist=Nirvana&format=Vinyl", 2},
		{"category", "category=Jazz", 1},
		{"free text", "q=nirv", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(t, http.MethodGet, "/records?"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
			}
			if got := len(decodePage(t, w).Records); got != tt.want {
				t.Fatalf("expected %d records, got %d", tt.want, got)
			}
		})
	}
}

func TestListRecords_ServedFromCache(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.do(t, http.MethodGet, "/records?artist=Nirvana", nil)
	second := env.do(t, http.MethodGet, "/records?artist=Nirvana", nil)

	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical bodies, got %s and %s", first.Body.String(), second.Body.String())
	}
	if calls := env.records.FindCalls(); calls != 1 {
		t.Fatalf("expected one store query, got %d", calls)
	}
}

func TestListRecords_ETag(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.do(t, http.MethodGet, "/records?artist=Nirvana", nil)
	etag := first.Header().Get("ETag")
	if !regexp.MustCompile(`^W/"[0-9a-f]{16}"$`).MatchString(etag) {
		t.Fatalf("unexpected ETag %q", etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/records?artist=Nirvana", nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body on 304, got %s", w.Body.String())
	}

	other := env.do(t, http.MethodGet, "/records?artist=Radiohead", nil)
	if other.Header().Get("ETag") == etag {
		t.Error("different pages should carry different ETags")
	}
}

func TestListRecords_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantError string
	}{
		{"garbage token", "/records?next=%25%25%25", "malformed_cursor"},
		{"not json", "/records?next=bm90LWpzb24", "malformed_cursor"},
		{"zero limit", "/records?next=eyJsaW1pdCI6MH0", "malformed_cursor"},
		{"unknown format", "/records?format=8-Track", "invalid_input"},
		{"unknown category", "/records?category=Polka", "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(t, http.MethodGet, tt.target, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Error; got != tt.wantError {
				t.Fatalf("expected error %q, got %q", tt.wantError, got)
			}
			if env.records.FindCalls() != 0 {
				t.Fatal("expected the store not to be queried")
			}
		})
	}
}

func TestCreateRecord(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/records", map[string]any{
		"artist":   "Portishead",
		"album":    "Dummy",
		"price":    21.5,
		"qty":      3,
		"format":   "Vinyl",
		"category": "Alternative",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	var created catalog.Record
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Album != "Dummy" {
		t.Fatalf("unexpected record %+v", created)
	}
	if env.records.Len() != 9 {
		t.Fatalf("expected 9 stored records, got %d", env.records.Len())
	}
}

func TestCreateRecord_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name: "duplicate",
			body: map[string]any{
				"artist": "Nirvana", "album": "Nevermind", "price": 10, "qty": 1,
				"format": "Vinyl", "category": "Rock",
			},
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
		{
			name:       "missing fields",
			body:       map[string]any{"artist": "Nirvana"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_input",
		},
		{
			name:       "malformed json",
			body:       `{"artist":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_input",
		},
		{
			name:       "wrong type",
			body:       `{"artist":"A","album":"B","price":"cheap","qty":1,"format":"CD","category":"Pop"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(t, http.MethodPost, "/records", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Error; got != tt.wantError {
				t.Fatalf("expected error %q, got %q", tt.wantError, got)
			}
			if env.records.Len() != 8 {
				t.Fatal("expected the store to be unchanged")
			}
		})
	}
}

func TestUpdateRecord(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/records/650c7d0d250f85bfeceb7d02", map[string]any{"qty": 40})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var updated catalog.Record
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Qty != 40 || updated.Album != "Kind of Blue" {
		t.Fatalf("unexpected record %+v", updated)
	}
}

func TestUpdateRecord_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/records/650c7d0d250f85bfeceb7dff", map[string]any{"qty": 1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/records/650c7d0d250f85bfeceb7d02", map[string]any{"format": "Reel"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/orders", map[string]any{
		"recordId": "650c7d0d250f85bfeceb7d03",
		"quantity": 2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if len(env.orders.Orders()) != 1 {
		t.Fatal("expected one stored order")
	}

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"unknown record", map[string]any{"recordId": "650c7d0d250f85bfeceb7dff", "quantity": 1}, http.StatusNotFound},
		{"zero quantity", map[string]any{"recordId": "650c7d0d250f85bfeceb7d03", "quantity": 0}, http.StatusBadRequest},
		{"missing record id", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"quantity as string", `{"recordId":"650c7d0d250f85bfeceb7d03","quantity":"two"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/orders", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
	if len(env.orders.Orders()) != 1 {
		t.Fatal("expected rejected orders not to be stored")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pinger     api.Pinger
		wantStatus int
	}{
		{"no pinger", nil, http.StatusOK},
		{"healthy", api.PingFunc(func(ctx context.Context) error { return nil }), http.StatusOK},
		{"store down", api.PingFunc(func(ctx context.Context) error { return errors.New("db down") }), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.pinger)
			w := env.do(t, http.MethodGet, "/healthz", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Header().Get(api.RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if got := w.Header().Get(api.RequestIDHeader); got != "req-123" {
		t.Fatalf("expected the caller's request id, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := env.do(t, http.MethodGet, "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decodeError(t, w).Error; got != "internal_error" {
		t.Fatalf("expected internal_error, got %q", got)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"malformed cursor", cursor.ErrMalformed, http.StatusBadRequest, "malformed_cursor"},
		{"invalid sort key", query.ErrInvalidSortKey, http.StatusBadRequest, "invalid_cursor"},
		{"invalid input", catalog.ErrInvalid, http.StatusBadRequest, "invalid_input"},
		{"not found", catalog.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", catalog.ErrConflict, http.StatusConflict, "conflict"},
		{"upstream", musicbrainz.ErrUnavailable, http.StatusBadGateway, "upstream_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := api.MapError(fmtWrap(tt.err))
			if status != tt.wantStatus || payload.Error != tt.wantError {
				t.Fatalf("MapError() = %d %q, want %d %q", status, payload.Error, tt.wantStatus, tt.wantError)
			}
		})
	}
}

type wrapped struct{ err error }

func (w wrapped) Error() string { return "outer: " + w.err.Error() }
func (w wrapped) Unwrap() error { return w.err }

func fmtWrap(err error) error { return wrapped{err: err} }
