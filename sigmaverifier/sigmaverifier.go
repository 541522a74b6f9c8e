// Package sigmaverifier implements the straight-line, blocking SIGMA-I
// verifier run (§4.6): a single function that opens a channel, takes
// the prover through Start/ServiceAuth/PicoAuth/Status, and returns
// whether the run succeeded. Grounded on the teacher's
// performHandshake in internal/core/connection.go — one function,
// sequential writes and timeout-bounded reads, per §9's "build the
// blocking variant as a thin driver" guidance.
package sigmaverifier

import (
	"github.com/vertexhub/libpico/channel"
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/session"
	"github.com/vertexhub/libpico/users"
)

// Error is the typed error category for verifier run failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Result is the outcome of a completed (successful or rejected) run.
type Result struct {
	Authorized         bool
	PicoIdentityPub    *picocrypto.PublicKey
	ReceivedExtraData  []byte
	SessionState       *session.State
}

// Run performs one full SIGMA-I verifier exchange over ch.
//
// authorizedUsers == nil admits any successfully authenticating
// identity (pairing mode); a non-nil but empty store admits none (§4.6,
// §9's "Authorization of empty user list").
//
// continuation selects the Status code on success: OK_CONTINUE when
// true (the caller intends to hand the session to the continuous
// re-authentication loop), OK_DONE otherwise. statusExtraData is
// attached to the outgoing Status message regardless of outcome.
func Run(ch channel.Channel, serviceIdentity *picocrypto.KeyPair, authorizedUsers *users.Store, continuation bool, statusExtraData []byte) (*Result, error) {
	if err := ch.Open(); err != nil {
		return nil, &Error{Message: "open channel: " + err.Error()}
	}

	startBytes, err := ch.Read()
	if err != nil {
		return nil, &Error{Message: "read start: " + err.Error()}
	}
	startObj, err := jsonvalue.Parse(string(startBytes))
	if err != nil {
		return nil, &Error{Message: "parse start: " + err.Error()}
	}
	start, err := messages.DecodeStart(startObj)
	if err != nil {
		return nil, &Error{Message: "decode start: " + err.Error()}
	}

	serviceEphemeral, err := session.NewEphemeral()
	if err != nil {
		return nil, &Error{Message: "generate service ephemeral: " + err.Error()}
	}
	serviceNonce, err := session.NewNonce()
	if err != nil {
		return nil, &Error{Message: "generate service nonce: " + err.Error()}
	}

	st := &session.State{
		ServiceIdentity:  serviceIdentity,
		ServiceIdentPub:  serviceIdentity.Public(),
		PicoEphemPub:     start.PicoEphemeralPublicKey,
		ServiceEphemeral: serviceEphemeral,
		ServiceEphemPub:  serviceEphemeral.Public(),
		ServiceNonce:     serviceNonce,
		PicoNonce:        start.PicoNonce,
	}
	st.DeriveKeys(serviceEphemeral, start.PicoEphemeralPublicKey)

	sessionID, err := messages.NewSessionID()
	if err != nil {
		return nil, &Error{Message: "generate session id: " + err.Error()}
	}

	serviceAuthMsg := &messages.ServiceAuth{
		ServiceEphemPublicKey: st.ServiceEphemPub,
		ServiceNonce:          serviceNonce,
		SessionID:             sessionID,
	}
	serviceAuthObj, err := messages.EncodeServiceAuth(serviceAuthMsg, st.PicoNonce, st.PicoEphemPub, serviceIdentity, st.VMacKey, st.VEncKey)
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}
	if err := ch.Write([]byte(serviceAuthObj.Serialize())); err != nil {
		return nil, &Error{Message: "write service auth: " + err.Error()}
	}

	picoAuthBytes, err := ch.Read()
	if err != nil {
		return nil, &Error{Message: "read pico auth: " + err.Error()}
	}
	picoAuthObj, err := jsonvalue.Parse(string(picoAuthBytes))
	if err != nil {
		return nil, &Error{Message: "parse pico auth: " + err.Error()}
	}
	picoAuth, err := messages.DecodePicoAuth(picoAuthObj, st.ServiceNonce, st.PicoEphemPub, st.PMacKey, st.PEncKey)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}

	authorized := isAuthorized(authorizedUsers, picoAuth.PicoIdentityPub)

	statusCode := messages.StatusRejected
	if authorized {
		if continuation {
			statusCode = messages.StatusOKContinue
		} else {
			statusCode = messages.StatusOKDone
		}
	}
	st.LastStatus = byte(statusCode)

	statusObj, err := messages.EncodeStatus(&messages.Status{SessionID: sessionID, Code: statusCode, ExtraData: statusExtraData}, st.VEncKey)
	if err != nil {
		return nil, &Error{Message: "encode status: " + err.Error()}
	}
	if err := ch.Write([]byte(statusObj.Serialize())); err != nil {
		return nil, &Error{Message: "write status: " + err.Error()}
	}

	return &Result{
		Authorized:        authorized,
		PicoIdentityPub:   picoAuth.PicoIdentityPub,
		ReceivedExtraData: picoAuth.ExtraData,
		SessionState:      st,
	}, nil
}

func isAuthorized(authorizedUsers *users.Store, picoIdentityPub *picocrypto.PublicKey) bool {
	if authorizedUsers == nil {
		return true
	}
	if len(authorizedUsers.Entries()) == 0 {
		return false
	}
	_, ok := authorizedUsers.Find(picoIdentityPub)
	return ok
}
