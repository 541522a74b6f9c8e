package users

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestBeaconLoadSaveRoundTrip(t *testing.T) {
	contents := "# known devices\n" +
		"a5:c3:2c:61:00:e7\n" +
		"\n" +
		"# with a commitment\n" +
		"01:02:03:04:05:06:" + base64.StdEncoding.EncodeToString([]byte("thirty-two-byte-commitmentxxxxx")) + "\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "beacons.txt")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := LoadBeacons(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(store.Entries()) != 2 {
		t.Fatalf("expected 2 beacons, got %d", len(store.Entries()))
	}
	if store.Entries()[0].Address != "a5c32c6100e7" {
		t.Fatalf("got address %q", store.Entries()[0].Address)
	}
	if store.Entries()[1].Commitment == nil {
		t.Fatalf("expected second beacon to carry a commitment")
	}

	outPath := filepath.Join(dir, "out.txt")
	if err := store.Save(outPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != contents {
		t.Fatalf("round trip mismatch:\n--- want ---\n%s\n--- got ---\n%s", contents, got)
	}
}

func TestBeaconRejectsBadAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beacons.txt")
	if err := os.WriteFile(path, []byte("5c:32:c6:10:0e\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadBeacons(path); err == nil {
		t.Fatalf("expected error for short MAC")
	}
}

func TestBeaconAddDeduplicatesByAddress(t *testing.T) {
	store := NewBeaconStore()
	store.Add(&Beacon{Address: "a5c32c6100e7"})
	store.Add(&Beacon{Address: "A5C32C6100E7", Commitment: []byte("c")})
	if len(store.Entries()) != 1 {
		t.Fatalf("expected dedup to one entry, got %d", len(store.Entries()))
	}
	if store.Entries()[0].Commitment == nil {
		t.Fatalf("expected second add to replace first")
	}
}
