// Package session holds the shared SIGMA-I session state (§3): the
// identity and ephemeral key pairs, the two nonces, and the five keys
// derived from them once both ephemeral public keys and both nonces
// are known.
package session

import (
	"crypto/rand"

	"github.com/vertexhub/libpico/kdf"
	"github.com/vertexhub/libpico/picocrypto"
)

// NonceSize is the fixed byte length of a SIGMA nonce (§3).
const NonceSize = 8

// State is the shared session state for one protocol run. Exactly one
// side owns a given identity key's private half; the other holds only
// its public key. A State must not be cloned or reused across runs —
// ephemeral keys are freshly generated per run (§3 invariant).
type State struct {
	ServiceIdentity *picocrypto.KeyPair    // nil if this side only holds the public half
	ServiceIdentPub *picocrypto.PublicKey
	PicoIdentity    *picocrypto.KeyPair
	PicoIdentPub    *picocrypto.PublicKey

	ServiceEphemeral *picocrypto.KeyPair
	ServiceEphemPub  *picocrypto.PublicKey
	PicoEphemeral    *picocrypto.KeyPair
	PicoEphemPub     *picocrypto.PublicKey

	ServiceNonce []byte
	PicoNonce    []byte

	PMacKey   []byte
	PEncKey   []byte
	VMacKey   []byte
	VEncKey   []byte
	SharedKey []byte

	LastStatus byte
}

// NewNonce returns NonceSize bytes of cryptographic randomness.
func NewNonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, err
	}
	return n, nil
}

// NewEphemeral generates a fresh ephemeral key pair for this run.
func NewEphemeral() (*picocrypto.KeyPair, error) {
	return picocrypto.GenerateKeyPair()
}

// DeriveKeys computes the five session keys from the ECDH shared
// secret between our ephemeral private key and the peer's ephemeral
// public key. Both ephemeral public keys and both nonces must already
// be set; this is only well-defined once all four are known (§3).
func (s *State) DeriveKeys(ourEphemeral *picocrypto.KeyPair, theirEphemPub *picocrypto.PublicKey) {
	shared := picocrypto.ECDH(ourEphemeral, theirEphemPub)
	keys := kdf.DeriveSigmaKeys(shared, s.PicoNonce, s.ServiceNonce)
	s.PMacKey = keys.PMacKey
	s.PEncKey = keys.PEncKey
	s.VMacKey = keys.VMacKey
	s.VEncKey = keys.VEncKey
	s.SharedKey = keys.SharedKey
}

// KeysDefined reports whether all five derived keys have been set.
func (s *State) KeysDefined() bool {
	return s.PMacKey != nil && s.PEncKey != nil && s.VMacKey != nil && s.VEncKey != nil && s.SharedKey != nil
}
