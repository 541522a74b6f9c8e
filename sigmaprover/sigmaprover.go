// Package sigmaprover implements the straight-line, blocking SIGMA-I
// prover run (§4.7): send Start, receive ServiceAuth, send PicoAuth,
// receive Status. The dual of sigmaverifier, over the same messages
// codecs.
package sigmaprover

import (
	"encoding/base64"

	"github.com/vertexhub/libpico/channel"
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/session"
)

// Error is the typed error category for prover run failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Result is the outcome of a completed prover run.
type Result struct {
	Status            messages.StatusByte
	ReturnedExtraData []byte
	SessionState      *session.State
}

// Run performs one full SIGMA-I prover exchange over ch, authenticating
// as picoIdentity and carrying extraData in the PicoAuth message.
func Run(ch channel.Channel, picoIdentity *picocrypto.KeyPair, extraData []byte) (*Result, error) {
	if err := ch.Open(); err != nil {
		return nil, &Error{Message: "open channel: " + err.Error()}
	}

	picoEphemeral, err := session.NewEphemeral()
	if err != nil {
		return nil, &Error{Message: "generate pico ephemeral: " + err.Error()}
	}
	picoNonce, err := session.NewNonce()
	if err != nil {
		return nil, &Error{Message: "generate pico nonce: " + err.Error()}
	}

	startObj, err := messages.EncodeStart(&messages.Start{
		PicoVersion:            2,
		PicoEphemeralPublicKey: picoEphemeral.Public(),
		PicoNonce:              picoNonce,
	})
	if err != nil {
		return nil, &Error{Message: "encode start: " + err.Error()}
	}
	if err := ch.Write([]byte(startObj.Serialize())); err != nil {
		return nil, &Error{Message: "write start: " + err.Error()}
	}

	serviceAuthBytes, err := ch.Read()
	if err != nil {
		return nil, &Error{Message: "read service auth: " + err.Error()}
	}
	serviceAuthObj, err := jsonvalue.Parse(string(serviceAuthBytes))
	if err != nil {
		return nil, &Error{Message: "parse service auth: " + err.Error()}
	}
	// DecodeServiceAuth needs vMacKey/vEncKey, which depend on the
	// derived session keys, which depend on serviceAuth's own ephemeral
	// public key — derive keys first from the envelope's cleartext
	// fields, then decode/verify the encrypted portion.
	serviceEphemPub, serviceNonce, sessionID, err := peekServiceAuthEnvelope(serviceAuthObj)
	if err != nil {
		return nil, err
	}

	st := &session.State{
		PicoEphemeral:   picoEphemeral,
		PicoEphemPub:    picoEphemeral.Public(),
		PicoNonce:       picoNonce,
		ServiceEphemPub: serviceEphemPub,
		ServiceNonce:    serviceNonce,
	}
	st.DeriveKeys(picoEphemeral, serviceEphemPub)

	decoded, err := messages.DecodeServiceAuth(serviceAuthObj, picoNonce, picoEphemeral.Public(), st.VMacKey, st.VEncKey)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}
	st.ServiceIdentPub = decoded.ServiceIdentityPub

	picoAuthObj, err := messages.EncodePicoAuth(&messages.PicoAuth{SessionID: sessionID, ExtraData: extraData}, serviceNonce, picoEphemeral.Public(), picoIdentity, st.PMacKey, st.PEncKey)
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}
	if err := ch.Write([]byte(picoAuthObj.Serialize())); err != nil {
		return nil, &Error{Message: "write pico auth: " + err.Error()}
	}

	statusBytes, err := ch.Read()
	if err != nil {
		return nil, &Error{Message: "read status: " + err.Error()}
	}
	statusObj, err := jsonvalue.Parse(string(statusBytes))
	if err != nil {
		return nil, &Error{Message: "parse status: " + err.Error()}
	}
	status, err := messages.DecodeStatus(statusObj, st.VEncKey)
	if err != nil {
		return nil, &Error{Message: "decode status: " + err.Error()}
	}
	st.LastStatus = byte(status.Code)

	return &Result{
		Status:            status.Code,
		ReturnedExtraData: status.ExtraData,
		SessionState:      st,
	}, nil
}

// peekServiceAuthEnvelope reads the cleartext outer fields of a
// ServiceAuth envelope without decrypting its body, so the prover can
// derive session keys before it can verify the encrypted portion.
func peekServiceAuthEnvelope(o *jsonvalue.Object) (serviceEphemPub *picocrypto.PublicKey, serviceNonce []byte, sessionID uint32, err error) {
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
	nonce, decErr := base64.StdEncoding.DecodeString(nonceB64)
	if decErr != nil {
		return nil, nil, 0, &Error{Message: "service auth: " + decErr.Error()}
	}
	return pub, nonce, uint32(o.GetInteger("sessionId")), nil
}
