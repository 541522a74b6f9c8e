// Package fsm implements the event-driven SIGMA-I state machines
// (§4.8): FsmPico (prover) and FsmService (verifier), the same
// protocol as sigmaprover/sigmaverifier but expressed as suspendable
// machines driven by host events (read/connected/disconnected/
// timeout) instead of blocking reads.
//
// State naming convention: a state named after message X means "X has
// been produced or consumed; the machine is now working toward the
// next named state." Transient states (ContStartPico, PicoAuth on the
// prover side, ServiceReAuth mid-round) are entered and left inside a
// single host event callback, but every entry is still reported
// through StatusUpdate per §4.8's "every state transition."
//
// Grounded on the teacher's callback-field pattern in Connection
// (onQR/onReady/onClose, set via SetOnQR/SetOnReady/SetOnClose) and its
// ConnectionState enum, generalized to the larger callback set and
// state chains §4.8 names. continuous.Engine supplies the
// sequence-number/timeout bookkeeping for the CONTSTARTPICO/
// PICOREAUTH/SERVICEREAUTH states on both sides, so the same rules
// govern the event-driven and blocking embodiments (see DESIGN.md's
// Cross-cutting decisions section).
package fsm

import (
	"encoding/base64"

	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/picocrypto"
)

// Error is the typed error category for FSM failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func parseFrame(data []byte) (*jsonvalue.Object, error) {
	o, err := jsonvalue.Parse(string(data))
	if err != nil {
		return nil, &Error{Message: "malformed frame: " + err.Error()}
	}
	return o, nil
}

// peekServiceAuthFields extracts a ServiceAuth envelope's cleartext
// outer fields without decrypting its body: session keys must be
// derived from serviceEphemPublicKey before the encrypted portion can
// be verified at all (mirrors sigmaprover.peekServiceAuthEnvelope).
func peekServiceAuthFields(o *jsonvalue.Object) (pub *picocrypto.PublicKey, nonce []byte, sessionID uint32, err error) {
	derB64, ok := o.GetString("serviceEphemPublicKey")
	if !ok {
		return nil, nil, 0, &Error{Message: "service auth: missing serviceEphemPublicKey"}
	}
	der, decErr := base64.StdEncoding.DecodeString(derB64)
	if decErr != nil {
		return nil, nil, 0, &Error{Message: "service auth: " + decErr.Error()}
	}
	pub, parseErr := picocrypto.ParsePublicKeyDER(der)
	if parseErr != nil {
		return nil, nil, 0, &Error{Message: "service auth: " + parseErr.Error()}
	}
	nonceB64, ok := o.GetString("serviceNonce")
	if !ok {
		return nil, nil, 0, &Error{Message: "service auth: missing serviceNonce"}
	}
	nonce, decErr = base64.StdEncoding.DecodeString(nonceB64)
	if decErr != nil {
		return nil, nil, 0, &Error{Message: "service auth: " + decErr.Error()}
	}
	return pub, nonce, uint32(o.GetInteger("sessionId")), nil
}
