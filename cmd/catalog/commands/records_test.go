package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/cursor"
	"github.com/goliatone/go-record-catalog/listing"
	"github.com/goliatone/go-record-catalog/pkg/testsupport"
)

// sliceLister pages over a fixed slice with the listing token format.
type sliceLister struct {
	records []catalog.Record
	calls   int
}

func (l *sliceLister) List(ctx context.Context, params catalog.FilterParams, token string) (listing.Page, error) {
	l.calls++
	cur := cursor.Cursor{Limit: 3}
	if token != "" {
		var err error
		if cur, err = cursor.Decode(token); err != nil {
			return listing.Page{}, err
		}
	}

	var page []catalog.Record
	for _, r := range l.records {
		if r.ID > cur.Last && len(page) < cur.Limit {
			page = append(page, r)
		}
	}
	return listing.Page{Records: page, NextCursor: listing.NextToken(page, cur.Limit)}, nil
}

func TestListRecords_SinglePage(t *testing.T) {
	lister := &sliceLister{records: testsupport.SampleRecords(t)}
	var out bytes.Buffer

	if err := listRecords(context.Background(), lister, &listOptions{output: "table"}, &out); err != nil {
		t.Fatalf("listRecords() failed: %v", err)
	}

	if lister.calls != 1 {
		t.Fatalf("expected one page request, got %d", lister.calls)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 rows and a next line, got %q", out.String())
	}
	if !strings.HasPrefix(lines[3], "next:") {
		t.Fatalf("expected a next cursor line, got %q", lines[3])
	}
}

func TestListRecords_All(t *testing.T) {
	lister := &sliceLister{records: testsupport.SampleRecords(t)}
	var out bytes.Buffer

	if err := listRecords(context.Background(), lister, &listOptions{output: "json", all: true}, &out); err != nil {
		t.Fatalf("listRecords() failed: %v", err)
	}

	// 8 records at 3 per page: 3 + 3 + 2, then an empty page.
	if lister.calls != 4 {
		t.Fatalf("expected 4 page requests, got %d", lister.calls)
	}

	dec := json.NewDecoder(&out)
	total := 0
	for dec.More() {
		var page listing.Page
		if err := dec.Decode(&page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		total += len(page.Records)
	}
	if total != 8 {
		t.Fatalf("expected 8 records across pages, got %d", total)
	}
}

func TestListRecords_MalformedToken(t *testing.T) {
	lister := &sliceLister{}
	err := listRecords(context.Background(), lister, &listOptions{output: "table", next: "%%"}, &bytes.Buffer{})
	if !errors.Is(err, cursor.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestRecordsListCommand_EmptyCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	config := "store:\n  driver: sqlite\n  uri: \":memory:\"\nmusicbrainz:\n  enabled: false\nlogger:\n  output: stderr\n  level: error\n"
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "records", "list", "-o", "json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"data":[]}` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRecordsListCommand_BadOutput(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"records", "list", "-o", "yaml"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unknown output format")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"serve": false, "records": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}
