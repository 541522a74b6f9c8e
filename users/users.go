// Package users implements the on-disk user store (§3, §6): an
// insertion-ordered list of authorized identities, one per line, with
// blank lines and "#"-prefixed comments preserved across load/export,
// grounded in the teacher's os.ReadFile/os.WriteFile credentials
// persistence (internal/core/connection.go's loadCredentials/
// saveCredentials).
package users

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/vertexhub/libpico/picocrypto"
)

// Error is the typed error category for user-store failures,
// including the commitment-mismatch case (§3, §7 Authorization).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrCommitmentMismatch is returned (wrapped in *Error) when a loaded
// entry's commitment field does not equal SHA-256(DER(public-key)).
var ErrCommitmentMismatch = &Error{Message: "COMMITMENT_ERROR"}

// Entry is one authorized user: name, public key, its commitment, and
// a per-user symmetric key, plus any comment lines that preceded it in
// the source file.
type Entry struct {
	Name         string
	PublicKey    *picocrypto.PublicKey
	Commitment   []byte
	SymmetricKey []byte
	Comments     []string // comment/blank lines immediately preceding this entry
}

// Store is the insertion-ordered list of Entry values, plus any
// leading header comments that appear before the first entry.
type Store struct {
	Header  []string
	entries []*Entry
	byPub   map[string]int // base64(DER(pub)) -> index into entries
}

// New returns an empty Store.
func New() *Store {
	return &Store{byPub: make(map[string]int)}
}

// Entries returns the store's entries in insertion order.
func (s *Store) Entries() []*Entry {
	return s.entries
}

// Find returns the entry whose public key matches pub, if any.
func (s *Store) Find(pub *picocrypto.PublicKey) (*Entry, bool) {
	der, err := pub.MarshalDER()
	if err != nil {
		return nil, false
	}
	idx, ok := s.byPub[base64.StdEncoding.EncodeToString(der)]
	if !ok {
		return nil, false
	}
	return s.entries[idx], true
}

// Add appends entry, replacing any prior entry with the same public
// key (de-duplication by public key, per §3).
func (s *Store) Add(entry *Entry) error {
	der, err := entry.PublicKey.MarshalDER()
	if err != nil {
		return &Error{Message: "add user: " + err.Error()}
	}
	key := base64.StdEncoding.EncodeToString(der)
	if idx, ok := s.byPub[key]; ok {
		s.entries[idx] = entry
		return nil
	}
	s.byPub[key] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// Load reads a users file in the format
// "name:<base64 commitment>:<base64 DER pub-key>:<base64 symmetric-key>\n"
// per §6. Blank lines and "#" lines are preserved as comments attached
// to the following entry (or to s.Header if they precede the first
// entry). Loading stops at the first malformed entry line and returns
// what was parsed so far along with the error, per §7.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Message: "open users file: " + err.Error()}
	}
	defer f.Close()

	store := New()
	var pending []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			pending = append(pending, line)
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return store, err
		}
		if len(store.entries) == 0 && len(pending) > 0 {
			store.Header = append(store.Header, pending...)
			pending = nil
		}
		entry.Comments = pending
		pending = nil
		if err := store.Add(entry); err != nil {
			return store, err
		}
	}
	if len(pending) > 0 {
		// trailing comment-only lines with no following entry stay on Header
		// only when the store has no entries at all; otherwise they are lost
		// context with nothing to attach to, matching a pure trailer.
		if len(store.entries) == 0 {
			store.Header = append(store.Header, pending...)
		}
	}
	if err := scanner.Err(); err != nil {
		return store, &Error{Message: "read users file: " + err.Error()}
	}
	return store, nil
}

func parseLine(line string) (*Entry, error) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) != 4 {
		return nil, &Error{Message: fmt.Sprintf("malformed user line: %q", line)}
	}
	name := parts[0]
	commitment, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, &Error{Message: "bad commitment base64: " + err.Error()}
	}
	pubDER, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &Error{Message: "bad public key base64: " + err.Error()}
	}
	symKey, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, &Error{Message: "bad symmetric key base64: " + err.Error()}
	}
	pub, err := picocrypto.ParsePublicKeyDER(pubDER)
	if err != nil {
		return nil, &Error{Message: "bad public key der: " + err.Error()}
	}
	want, err := picocrypto.Commitment(pub)
	if err != nil {
		return nil, &Error{Message: "commitment: " + err.Error()}
	}
	if !bytes.Equal(want, commitment) {
		return nil, ErrCommitmentMismatch
	}
	return &Entry{
		Name:         name,
		PublicKey:    pub,
		Commitment:   commitment,
		SymmetricKey: symKey,
	}, nil
}

// Save writes the store back to path in the same format Load reads,
// preserving header comments and per-entry comments exactly so an
// unmodified round trip reproduces the source file byte-for-byte (§8
// invariant 4).
func (s *Store) Save(path string) error {
	var buf bytes.Buffer
	for _, h := range s.Header {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}
	for _, e := range s.entries {
		for _, c := range e.Comments {
			buf.WriteString(c)
			buf.WriteByte('\n')
		}
		der, err := e.PublicKey.MarshalDER()
		if err != nil {
			return &Error{Message: "marshal public key: " + err.Error()}
		}
		fmt.Fprintf(&buf, "%s:%s:%s:%s\n",
			e.Name,
			base64.StdEncoding.EncodeToString(e.Commitment),
			base64.StdEncoding.EncodeToString(der),
			base64.StdEncoding.EncodeToString(e.SymmetricKey),
		)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}
