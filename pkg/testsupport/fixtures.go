package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadFixtureRows loads a JSON array of row objects. Integral numbers come
// back as int64 and other numbers as float64, so snowflake ids keep their
// precision.
func LoadFixtureRows(t *testing.T, path string) []map[string]any {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(LoadFixture(t, path)))
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		t.Fatalf("failed to decode fixture rows from %s: %v", path, err)
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = fromJSON(v)
		}
	}
	return rows
}

func fromJSON(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []any:
		// Nested arrays are stored the way a JSON column would hold them.
		b, err := json.Marshal(n)
		if err != nil {
			return v
		}
		return string(b)
	}
	return v
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
