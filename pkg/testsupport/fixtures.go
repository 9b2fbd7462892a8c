package testsupport

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-record-catalog/catalog"
)

//go:embed testdata/records.json
var recordsFixture []byte

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// SampleRecords returns the shared catalogue fixture, ascending by id.
// Every call returns a fresh slice.
func SampleRecords(t testing.TB) []catalog.Record {
	t.Helper()

	var records []catalog.Record
	if err := json.Unmarshal(recordsFixture, &records); err != nil {
		t.Fatalf("failed to unmarshal records fixture: %v", err)
	}
	return records
}

// GenerateRecords builds n valid records with ids that sort in creation order.
func GenerateRecords(n int) []catalog.Record {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]catalog.Record, n)
	for i := range records {
		created := base.Add(time.Duration(i) * time.Minute)
		records[i] = catalog.Record{
			ID:        fmt.Sprintf("%08d", i+1),
			Artist:    fmt.Sprintf("Artist %d", i+1),
			Album:     fmt.Sprintf("Album %d", i+1),
			Price:     10,
			Qty:       1,
			Format:    catalog.FormatVinyl,
			Category:  catalog.CategoryRock,
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
	return records
}

// TempFile creates a temporary file holding content and removes it when the
// test finishes. pattern follows os.CreateTemp.
func TempFile(t testing.TB, pattern string, content []byte) string {
	t.Helper()

	tmpfile, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatalf("failed to write to temp file: %v", err)
	}

	if err := tmpfile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	return tmpfile.Name()
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
