package users

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/vertexhub/libpico/picocrypto"
)

func mustKey(t *testing.T) *picocrypto.KeyPair {
	t.Helper()
	kp, err := picocrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return kp
}

func writeLine(t *testing.T, kp *picocrypto.KeyPair, name string, symKey []byte) string {
	t.Helper()
	der, err := kp.Public().MarshalDER()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	commitment, err := picocrypto.Commitment(kp.Public())
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	return name + ":" +
		base64.StdEncoding.EncodeToString(commitment) + ":" +
		base64.StdEncoding.EncodeToString(der) + ":" +
		base64.StdEncoding.EncodeToString(symKey)
}

// TestLoadSaveRoundTrip is §8 invariant 4: an unmodified load/save
// round trip reproduces the file byte-for-byte.
func TestLoadSaveRoundTrip(t *testing.T) {
	kp1 := mustKey(t)
	kp2 := mustKey(t)

	contents := "# header comment\n\n" +
		writeLine(t, kp1, "alice", []byte("key-one-16-bytes")) + "\n" +
		"# comment before bob\n" +
		writeLine(t, kp2, "bob", []byte("key-two-16-bytes")) + "\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "users.txt")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(store.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.Entries()))
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

func TestLoadRejectsCommitmentMismatch(t *testing.T) {
	kp := mustKey(t)
	der, _ := kp.Public().MarshalDER()
	badCommitment := base64.StdEncoding.EncodeToString([]byte("not-a-real-commitment-32bytes!!!"))
	line := "mallory:" + badCommitment + ":" + base64.StdEncoding.EncodeToString(der) + ":" + base64.StdEncoding.EncodeToString([]byte("x"))

	dir := t.TempDir()
	path := filepath.Join(dir, "users.txt")
	if err := os.WriteFile(path, []byte(line+"\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(path)
	if err != ErrCommitmentMismatch {
		t.Fatalf("expected ErrCommitmentMismatch, got %v", err)
	}
}

func TestFindByPublicKey(t *testing.T) {
	kp := mustKey(t)
	der, _ := kp.Public().MarshalDER()
	commitment, _ := picocrypto.Commitment(kp.Public())
	store := New()
	store.Add(&Entry{Name: "alice", PublicKey: kp.Public(), Commitment: commitment, SymmetricKey: []byte("k")})

	found, ok := store.Find(kp.Public())
	if !ok || found.Name != "alice" {
		t.Fatalf("expected to find alice")
	}

	_ = der
}

func TestAddDeduplicatesByPublicKey(t *testing.T) {
	kp := mustKey(t)
	commitment, _ := picocrypto.Commitment(kp.Public())
	store := New()
	store.Add(&Entry{Name: "first", PublicKey: kp.Public(), Commitment: commitment})
	store.Add(&Entry{Name: "second", PublicKey: kp.Public(), Commitment: commitment})

	if len(store.Entries()) != 1 {
		t.Fatalf("expected dedup to one entry, got %d", len(store.Entries()))
	}
	if store.Entries()[0].Name != "second" {
		t.Fatalf("expected second add to replace first")
	}
}
