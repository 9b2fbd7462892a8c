package di

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-record-catalog/api"
	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/goliatone/go-record-catalog/pkg/testsupport"
	"github.com/goliatone/go-record-catalog/records"
	"github.com/rs/zerolog"
)

func seedContainer(t testing.TB, container *Container, inputs []records.CreateRecordInput) []catalog.Record {
	t.Helper()
	created := make([]catalog.Record, 0, len(inputs))
	for _, in := range inputs {
		r, err := container.Records().Create(context.Background(), in)
		if err != nil {
			t.Fatalf("seed %s/%s: %v", in.Artist, in.Album, err)
		}
		created = append(created, r)
	}
	return created
}

func sampleInputs(t testing.TB) []records.CreateRecordInput {
	t.Helper()
	samples := testsupport.SampleRecords(t)
	inputs := make([]records.CreateRecordInput, len(samples))
	for i, r := range samples {
		inputs[i] = records.CreateRecordInput{
			Artist:   r.Artist,
			Album:    r.Album,
			Price:    r.Price,
			Qty:      r.Qty,
			Format:   r.Format,
			Category: r.Category,
		}
	}
	return inputs
}

func generatedInputs(n int) []records.CreateRecordInput {
	inputs := make([]records.CreateRecordInput, n)
	for i := range inputs {
		inputs[i] = records.CreateRecordInput{
			Artist:   fmt.Sprintf("Artist %02d", i),
			Album:    fmt.Sprintf("Album %02d", i),
			Price:    10,
			Qty:      1,
			Format:   catalog.FormatVinyl,
			Category: catalog.CategoryRock,
		}
	}
	return inputs
}

// TestEndToEndListingFlow walks the paginated listing through the HTTP
// handler over a SQLite store and the in-process cache.
func TestEndToEndListingFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	container := newTestContainer(t, testConfig(t))
	seedContainer(t, container, generatedInputs(7))

	router := api.NewRouter(container.Handler(), zerolog.Nop())

	get := func(target string) listing.Page {
		t.Helper()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d body=%s", target, w.Code, w.Body.String())
		}
		var page listing.Page
		if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return page
	}

	first := get("/records")
	if len(first.Records) != 5 || first.NextCursor == "" {
		t.Fatalf("expected 5 records and a cursor, got %d %q", len(first.Records), first.NextCursor)
	}

	second := get("/records?next=" + url.QueryEscape(first.NextCursor))
	if len(second.Records) != 2 {
		t.Fatalf("expected 2 records on the second page, got %d", len(second.Records))
	}
	if second.Records[0].ID <= first.Records[4].ID {
		t.Fatalf("expected ids to ascend across pages: %s then %s", first.Records[4].ID, second.Records[0].ID)
	}

	third := get("/records?next=" + url.QueryEscape(second.NextCursor))
	if len(third.Records) != 0 || third.NextCursor != "" {
		t.Fatalf("expected an empty final page, got %d records cursor %q", len(third.Records), third.NextCursor)
	}
}

// TestCachedPagesAreStaleUntilTTL documents that writes do not invalidate
// cached listing pages.
func TestCachedPagesAreStaleUntilTTL(t *testing.T) {
	container := newTestContainer(t, testConfig(t))
	seedContainer(t, container, generatedInputs(2))
	ctx := context.Background()

	before, err := container.Listing().List(ctx, catalog.FilterParams{}, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	seedContainer(t, container, generatedInputs(4)[2:])

	cached, err := container.Listing().List(ctx, catalog.FilterParams{}, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(cached.Records) != len(before.Records) {
		t.Fatalf("expected the cached page (%d records), got %d", len(before.Records), len(cached.Records))
	}

	// A different filter is a different key and sees the new rows.
	fresh, err := container.Listing().List(ctx, catalog.FilterParams{Format: catalog.FormatVinyl}, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(fresh.Records) != 4 {
		t.Fatalf("expected 4 records for an uncached filter, got %d", len(fresh.Records))
	}
}

func TestFiltersThroughSQLStore(t *testing.T) {
	container := newTestContainer(t, testConfig(t))
	seedContainer(t, container, sampleInputs(t))

	tests := []struct {
		name   string
		params catalog.FilterParams
		want   int
	}{
		{"no filter, first page", catalog.FilterParams{}, 5},
		{"artist", catalog.FilterParams{Artist: "Nirvana"}, 3},
		{"format", catalog.FilterParams{Format: catalog.FormatCD}, 2},
		{"free text is case insensitive", catalog.FilterParams{Query: "NIRVANA"}, 3},
		{"free text matches category", catalog.FilterParams{Query: "hip"}, 1},
		{"no match", catalog.FilterParams{Artist: "Nobody"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := container.Listing().List(context.Background(), tt.params, "")
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(page.Records) != tt.want {
				t.Fatalf("expected %d records, got %d", tt.want, len(page.Records))
			}
		})
	}
}

func TestWritePathThroughHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	container := newTestContainer(t, testConfig(t))
	router := api.NewRouter(container.Handler(), zerolog.Nop())

	send := func(method, target string, body any) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	record := map[string]any{
		"artist": "Massive Attack", "album": "Mezzanine", "price": 24, "qty": 2,
		"format": "Vinyl", "category": "Alternative",
	}

	w := send(http.MethodPost, "/records", record)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var created catalog.Record
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := send(http.MethodPost, "/records", record); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", w.Code)
	}

	if w := send(http.MethodPut, "/records/"+created.ID, map[string]any{"qty": 9}); w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	if w := send(http.MethodPost, "/orders", map[string]any{"recordId": created.ID, "quantity": 1}); w.Code != http.StatusCreated {
		t.Fatalf("order: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if w := send(http.MethodPost, "/orders", map[string]any{"recordId": "missing", "quantity": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("order for unknown record: expected 404, got %d", w.Code)
	}

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", health.Code)
	}
}
