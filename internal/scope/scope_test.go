package scope

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlug(t *testing.T) {
	s := Scope{Env: EnvPaper, Broker: "Alpaca", Market: "US-Equity", Region: "NA"}
	want := "paper-alpaca-us-equity-na"
	if got := s.Slug(); got != want {
		t.Errorf("Slug() = %q, want %q", got, want)
	}
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/data/root", Scope{Env: EnvLive, Broker: "kraken", Market: "crypto", Region: "global"})
	want := filepath.Join("/data/root", "live-kraken-crypto-global", "state", "open_positions.json")
	if got := l.OpenPositions(); got != want {
		t.Errorf("OpenPositions() = %q, want %q", got, want)
	}
}

func TestWriteFileAtomicNoPartialVisibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("content = %q", string(data))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the final file, no leftover temp files, got %d entries", len(entries))
	}
}

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")

	type cursor struct {
		LastSeenFillID string `json:"last_seen_fill_id"`
	}

	if err := WriteJSONAtomic(path, cursor{LastSeenFillID: "abc123"}); err != nil {
		t.Fatalf("WriteJSONAtomic failed: %v", err)
	}

	var got cursor
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.LastSeenFillID != "abc123" {
		t.Errorf("LastSeenFillID = %q", got.LastSeenFillID)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &struct{}{})
	if !os.IsNotExist(err) {
		t.Errorf("expected IsNotExist error, got %v", err)
	}
}
