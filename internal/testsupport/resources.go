package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"torrank/internal/recognize"
	"torrank/internal/torrent"
)

// Resource builds a resource whose attributes are recognized from the title.
func Resource(title string) *torrent.Resource {
	r := &torrent.Resource{Title: title}
	recognize.Fill(r)
	return r
}

// WriteJSON marshals v into path, creating parent directories.
func WriteJSON(t testing.TB, path string, v any) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
