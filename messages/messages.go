// Package messages implements the six SIGMA-I wire codecs (§4.5): JSON
// envelopes whose encryptedData field carries an AES-128-GCM
// ciphertext over an inner payload built from length-prefixed byte
// blocks (buffer.AppendLengthPrefixed), the same construct-payload,
// encrypt-under-derived-key, wrap-in-envelope shape as the teacher's
// GenerateClientHello/ProcessServerHello/GenerateClientFinish in
// noise.go.
package messages

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"

	"github.com/vertexhub/libpico/buffer"
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/seqno"
)

// Error is the typed error category for message codec failures
// (format: missing field, wrong type; crypto: decrypt/mac/signature
// failure).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewSessionID draws a fresh random session id for ServiceAuth (§4.5):
// a 32-bit value read from crypto/rand, the one place either FSM or
// the synchronous verifier needs to mint a session id, so both share
// this instead of each keeping its own random-uint32 helper.
func NewSessionID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, &Error{Message: "messages: generate session id: " + err.Error()}
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// StatusByte is the single-byte outcome carried by Status (§4.5).
type StatusByte byte

const (
	StatusOKDone     StatusByte = 0x00
	StatusOKContinue StatusByte = 0x01
	StatusRejected   StatusByte = 0x02
)

// Valid reports whether s is one of the three recognized status codes.
func (s StatusByte) Valid() bool {
	return s == StatusOKDone || s == StatusOKContinue || s == StatusRejected
}

// ReauthState is the per-round state exchanged during continuous
// re-authentication (§4.5/§4.9).
type ReauthState int8

const (
	ReauthContinue ReauthState = 0
	ReauthPause    ReauthState = 1
	ReauthStop     ReauthState = 2
	ReauthError    ReauthState = 3
	ReauthInvalid  ReauthState = -1
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &Error{Message: "bad base64: " + err.Error()}
	}
	return b, nil
}

func getString(o *jsonvalue.Object, field string) (string, error) {
	s, ok := o.GetString(field)
	if !ok {
		return "", &Error{Message: "missing or non-string field: " + field}
	}
	return s, nil
}

func getBase64Field(o *jsonvalue.Object, field string) ([]byte, error) {
	s, err := getString(o, field)
	if err != nil {
		return nil, err
	}
	return unb64(s)
}

// --- Start ---------------------------------------------------------

// Start is the first, cleartext message: prover to verifier.
type Start struct {
	PicoVersion            int64
	PicoEphemeralPublicKey *picocrypto.PublicKey
	PicoNonce              []byte
}

// EncodeStart builds the Start JSON object.
func EncodeStart(s *Start) (*jsonvalue.Object, error) {
	der, err := s.PicoEphemeralPublicKey.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode start: " + err.Error()}
	}
	o := jsonvalue.New()
	o.SetInt("picoVersion", s.PicoVersion)
	o.SetString("picoEphemeralPublicKey", b64(der))
	o.SetString("picoNonce", b64(s.PicoNonce))
	return o, nil
}

// DecodeStart parses a Start JSON object.
func DecodeStart(o *jsonvalue.Object) (*Start, error) {
	version := o.GetInteger("picoVersion")
	pubB64, err := getBase64Field(o, "picoEphemeralPublicKey")
	if err != nil {
		return nil, err
	}
	nonce, err := getBase64Field(o, "picoNonce")
	if err != nil {
		return nil, err
	}
	pub, err := picocrypto.ParsePublicKeyDER(pubB64)
	if err != nil {
		return nil, &Error{Message: "decode start: " + err.Error()}
	}
	return &Start{PicoVersion: version, PicoEphemeralPublicKey: pub, PicoNonce: nonce}, nil
}

// --- ServiceAuth -----------------------------------------------------

// ServiceAuth is the verifier's reply to Start.
type ServiceAuth struct {
	ServiceEphemPublicKey *picocrypto.PublicKey
	ServiceNonce          []byte
	SessionID             uint32
}

// EncodeServiceAuth builds and encrypts the ServiceAuth envelope.
// serviceIdentity signs, serviceIdentityPub is the public key carried
// inside the encrypted payload, picoEphemPub is the peer's ephemeral
// public key recorded from Start.
func EncodeServiceAuth(msg *ServiceAuth, picoNonce []byte, picoEphemPub *picocrypto.PublicKey, serviceIdentity *picocrypto.KeyPair, vMacKey, vEncKey []byte) (*jsonvalue.Object, error) {
	serviceIdentityPub := serviceIdentity.Public()
	serviceIdentityDER, err := serviceIdentityPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}
	picoEphemDER, err := picoEphemPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}
	serviceEphemDER, err := msg.ServiceEphemPublicKey.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}

	var sessionIDBytes [4]byte
	binary.BigEndian.PutUint32(sessionIDBytes[:], msg.SessionID)

	sigInput := buffer.New(256)
	sigInput.Append(picoNonce)
	sigInput.Append(sessionIDBytes[:])
	sigInput.Append(picoEphemDER)
	sigInput.Append(serviceEphemDER)
	sig, err := picocrypto.Sign(serviceIdentity, sigInput.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}
	mac := picocrypto.GenerateMAC(vMacKey, serviceIdentityDER)

	inner := buffer.New(512)
	buffer.AppendLengthPrefixed(inner, serviceIdentityDER)
	buffer.AppendLengthPrefixed(inner, sig)
	buffer.AppendLengthPrefixed(inner, mac)

	iv, err := picocrypto.GenerateIV()
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}
	ciphertext, err := picocrypto.Encrypt(vEncKey, iv, inner.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode service auth: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetString("serviceEphemPublicKey", b64(serviceEphemDER))
	o.SetString("serviceNonce", b64(msg.ServiceNonce))
	o.SetInt("sessionId", int64(msg.SessionID))
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))
	return o, nil
}

// DecodedServiceAuth is the verified result of decoding a ServiceAuth
// envelope: the embedded service identity public key, alongside the
// fields the caller needs to continue the protocol.
type DecodedServiceAuth struct {
	ServiceEphemPublicKey *picocrypto.PublicKey
	ServiceNonce          []byte
	SessionID             uint32
	ServiceIdentityPub    *picocrypto.PublicKey
}

// DecodeServiceAuth decrypts and verifies a ServiceAuth envelope.
// picoNonce and picoEphemPub are the prover's own values from the Start
// it sent; vMacKey/vEncKey are the session's derived keys.
func DecodeServiceAuth(o *jsonvalue.Object, picoNonce []byte, picoEphemPub *picocrypto.PublicKey, vMacKey, vEncKey []byte) (*DecodedServiceAuth, error) {
	serviceEphemDER, err := getBase64Field(o, "serviceEphemPublicKey")
	if err != nil {
		return nil, err
	}
	serviceNonce, err := getBase64Field(o, "serviceNonce")
	if err != nil {
		return nil, err
	}
	sessionID := uint32(o.GetInteger("sessionId"))
	iv, err := getBase64Field(o, "iv")
	if err != nil {
		return nil, err
	}
	ciphertext, err := getBase64Field(o, "encryptedData")
	if err != nil {
		return nil, err
	}

	inner, err := picocrypto.Decrypt(vEncKey, iv, ciphertext)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}

	serviceIdentityDER, offset, err := buffer.ReadLengthPrefixed(inner, 0)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}
	sig, offset, err := buffer.ReadLengthPrefixed(inner, offset)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}
	mac, _, err := buffer.ReadLengthPrefixed(inner, offset)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}

	if !picocrypto.VerifyMAC(vMacKey, serviceIdentityDER, mac) {
		return nil, &Error{Message: "decode service auth: mac verification failed"}
	}
	serviceIdentityPub, err := picocrypto.ParsePublicKeyDER(serviceIdentityDER)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}
	serviceEphemPub, err := picocrypto.ParsePublicKeyDER(serviceEphemDER)
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}
	picoEphemDER, err := picoEphemPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "decode service auth: " + err.Error()}
	}

	var sessionIDBytes [4]byte
	binary.BigEndian.PutUint32(sessionIDBytes[:], sessionID)
	sigInput := buffer.New(256)
	sigInput.Append(picoNonce)
	sigInput.Append(sessionIDBytes[:])
	sigInput.Append(picoEphemDER)
	sigInput.Append(serviceEphemDER)
	if !picocrypto.Verify(serviceIdentityPub, sigInput.Bytes(), sig) {
		return nil, &Error{Message: "decode service auth: signature verification failed"}
	}

	return &DecodedServiceAuth{
		ServiceEphemPublicKey: serviceEphemPub,
		ServiceNonce:          serviceNonce,
		SessionID:             sessionID,
		ServiceIdentityPub:    serviceIdentityPub,
	}, nil
}

// --- PicoAuth --------------------------------------------------------

// PicoAuth is the prover's authentication reply.
type PicoAuth struct {
	SessionID uint32
	ExtraData []byte
}

// EncodePicoAuth builds and encrypts the PicoAuth envelope.
func EncodePicoAuth(msg *PicoAuth, serviceNonce []byte, picoEphemPub *picocrypto.PublicKey, picoIdentity *picocrypto.KeyPair, pMacKey, pEncKey []byte) (*jsonvalue.Object, error) {
	picoIdentityPub := picoIdentity.Public()
	picoIdentityDER, err := picoIdentityPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}
	picoEphemDER, err := picoEphemPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}

	sigInput := buffer.New(256)
	sigInput.Append(serviceNonce)
	var sessionIDBytes [4]byte
	binary.BigEndian.PutUint32(sessionIDBytes[:], msg.SessionID)
	sigInput.Append(sessionIDBytes[:])
	sigInput.Append(picoEphemDER)
	sig, err := picocrypto.Sign(picoIdentity, sigInput.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}
	mac := picocrypto.GenerateMAC(pMacKey, picoIdentityDER)

	inner := buffer.New(512)
	buffer.AppendLengthPrefixed(inner, picoIdentityDER)
	buffer.AppendLengthPrefixed(inner, sig)
	buffer.AppendLengthPrefixed(inner, mac)
	buffer.AppendLengthPrefixed(inner, msg.ExtraData)

	iv, err := picocrypto.GenerateIV()
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}
	ciphertext, err := picocrypto.Encrypt(pEncKey, iv, inner.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode pico auth: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetInt("sessionId", int64(msg.SessionID))
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))
	return o, nil
}

// DecodedPicoAuth is the verified result of decoding a PicoAuth
// envelope.
type DecodedPicoAuth struct {
	SessionID        uint32
	PicoIdentityPub  *picocrypto.PublicKey
	ExtraData        []byte
}

// DecodePicoAuth decrypts and verifies a PicoAuth envelope.
// serviceNonce and picoEphemPub are recorded from the session's own
// earlier messages; pMacKey/pEncKey are the session's derived keys.
func DecodePicoAuth(o *jsonvalue.Object, serviceNonce []byte, picoEphemPub *picocrypto.PublicKey, pMacKey, pEncKey []byte) (*DecodedPicoAuth, error) {
	sessionID := uint32(o.GetInteger("sessionId"))
	iv, err := getBase64Field(o, "iv")
	if err != nil {
		return nil, err
	}
	ciphertext, err := getBase64Field(o, "encryptedData")
	if err != nil {
		return nil, err
	}

	inner, err := picocrypto.Decrypt(pEncKey, iv, ciphertext)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}

	picoIdentityDER, offset, err := buffer.ReadLengthPrefixed(inner, 0)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}
	sig, offset, err := buffer.ReadLengthPrefixed(inner, offset)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}
	mac, offset, err := buffer.ReadLengthPrefixed(inner, offset)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}
	extraData, _, err := buffer.ReadLengthPrefixed(inner, offset)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}

	if !picocrypto.VerifyMAC(pMacKey, picoIdentityDER, mac) {
		return nil, &Error{Message: "decode pico auth: mac verification failed"}
	}
	picoIdentityPub, err := picocrypto.ParsePublicKeyDER(picoIdentityDER)
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}
	picoEphemDER, err := picoEphemPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "decode pico auth: " + err.Error()}
	}

	sigInput := buffer.New(256)
	sigInput.Append(serviceNonce)
	var sessionIDBytes [4]byte
	binary.BigEndian.PutUint32(sessionIDBytes[:], sessionID)
	sigInput.Append(sessionIDBytes[:])
	sigInput.Append(picoEphemDER)
	if !picocrypto.Verify(picoIdentityPub, sigInput.Bytes(), sig) {
		return nil, &Error{Message: "decode pico auth: signature verification failed"}
	}

	return &DecodedPicoAuth{
		SessionID:       sessionID,
		PicoIdentityPub: picoIdentityPub,
		ExtraData:       extraData,
	}, nil
}

// --- Status ----------------------------------------------------------

// Status is the verifier's final word on a protocol run.
type Status struct {
	SessionID uint32
	Code      StatusByte
	ExtraData []byte
}

// EncodeStatus builds and encrypts the Status envelope under vEncKey.
func EncodeStatus(msg *Status, vEncKey []byte) (*jsonvalue.Object, error) {
	inner := buffer.New(64)
	inner.Append([]byte{byte(msg.Code)})
	buffer.AppendLengthPrefixed(inner, msg.ExtraData)

	iv, err := picocrypto.GenerateIV()
	if err != nil {
		return nil, &Error{Message: "encode status: " + err.Error()}
	}
	ciphertext, err := picocrypto.Encrypt(vEncKey, iv, inner.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode status: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetInt("sessionId", int64(msg.SessionID))
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))
	return o, nil
}

// DecodeStatus decrypts a Status envelope under vEncKey.
func DecodeStatus(o *jsonvalue.Object, vEncKey []byte) (*Status, error) {
	sessionID := uint32(o.GetInteger("sessionId"))
	iv, err := getBase64Field(o, "iv")
	if err != nil {
		return nil, err
	}
	ciphertext, err := getBase64Field(o, "encryptedData")
	if err != nil {
		return nil, err
	}
	inner, err := picocrypto.Decrypt(vEncKey, iv, ciphertext)
	if err != nil {
		return nil, &Error{Message: "decode status: " + err.Error()}
	}
	if len(inner) < 1 {
		return nil, &Error{Message: "decode status: empty payload"}
	}
	code := StatusByte(inner[0])
	extraData, _, err := buffer.ReadLengthPrefixed(inner, 1)
	if err != nil {
		return nil, &Error{Message: "decode status: " + err.Error()}
	}
	return &Status{SessionID: sessionID, Code: code, ExtraData: extraData}, nil
}

// --- PicoReAuth --------------------------------------------------------

// PicoReAuth is one prover-side round of the continuous reauth loop.
type PicoReAuth struct {
	State     ReauthState
	SeqNo     seqno.SeqNo
	ExtraData []byte
}

// EncodePicoReAuth builds and encrypts a PicoReAuth envelope under
// sharedKey with a fresh IV.
func EncodePicoReAuth(msg *PicoReAuth, sharedKey []byte) (*jsonvalue.Object, error) {
	inner := buffer.New(64)
	inner.Append([]byte{byte(msg.State)})
	inner.Append(msg.SeqNo.Bytes())
	buffer.AppendLengthPrefixed(inner, msg.ExtraData)

	iv, err := picocrypto.GenerateIV()
	if err != nil {
		return nil, &Error{Message: "encode pico reauth: " + err.Error()}
	}
	ciphertext, err := picocrypto.Encrypt(sharedKey, iv, inner.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode pico reauth: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))
	return o, nil
}

// DecodePicoReAuth decrypts a PicoReAuth envelope under sharedKey.
func DecodePicoReAuth(o *jsonvalue.Object, sharedKey []byte) (*PicoReAuth, error) {
	iv, err := getBase64Field(o, "iv")
	if err != nil {
		return nil, err
	}
	ciphertext, err := getBase64Field(o, "encryptedData")
	if err != nil {
		return nil, err
	}
	inner, err := picocrypto.Decrypt(sharedKey, iv, ciphertext)
	if err != nil {
		return nil, &Error{Message: "decode pico reauth: " + err.Error()}
	}
	if len(inner) < 1+seqno.Size {
		return nil, &Error{Message: "decode pico reauth: payload too short"}
	}
	state := ReauthState(int8(inner[0]))
	seq, err := seqno.FromBytes(inner[1 : 1+seqno.Size])
	if err != nil {
		return nil, &Error{Message: "decode pico reauth: " + err.Error()}
	}
	extraData, _, err := buffer.ReadLengthPrefixed(inner, 1+seqno.Size)
	if err != nil {
		return nil, &Error{Message: "decode pico reauth: " + err.Error()}
	}
	return &PicoReAuth{State: state, SeqNo: seq, ExtraData: extraData}, nil
}

// --- ServiceReAuth -----------------------------------------------------

// ServiceReAuth is one verifier-side round of the continuous reauth
// loop. ExtraData is nil when the message carried no extra-data block
// at all — the legacy-tolerant shape §9's Open Question settles on:
// new implementations always emit the field, but decoders must accept
// messages without it.
type ServiceReAuth struct {
	State     ReauthState
	Timeout   uint32
	SeqNo     seqno.SeqNo
	ExtraData []byte
}

// EncodeServiceReAuth builds and encrypts a ServiceReAuth envelope
// under sharedKey, always emitting the extra-data block (possibly
// empty) per §9's Open Question resolution.
func EncodeServiceReAuth(msg *ServiceReAuth, sharedKey []byte) (*jsonvalue.Object, error) {
	inner := buffer.New(64)
	inner.Append([]byte{byte(msg.State)})
	var timeoutBytes [4]byte
	binary.BigEndian.PutUint32(timeoutBytes[:], msg.Timeout)
	inner.Append(timeoutBytes[:])
	inner.Append(msg.SeqNo.Bytes())
	buffer.AppendLengthPrefixed(inner, msg.ExtraData)

	iv, err := picocrypto.GenerateIV()
	if err != nil {
		return nil, &Error{Message: "encode service reauth: " + err.Error()}
	}
	ciphertext, err := picocrypto.Encrypt(sharedKey, iv, inner.Bytes())
	if err != nil {
		return nil, &Error{Message: "encode service reauth: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))
	return o, nil
}

// DecodeServiceReAuth decrypts a ServiceReAuth envelope under
// sharedKey. If the payload ends exactly at the fixed-width fields
// with no trailing length-prefixed block, ExtraData is left nil
// rather than treated as a format error (legacy tolerance, §9).
func DecodeServiceReAuth(o *jsonvalue.Object, sharedKey []byte) (*ServiceReAuth, error) {
	iv, err := getBase64Field(o, "iv")
	if err != nil {
		return nil, err
	}
	ciphertext, err := getBase64Field(o, "encryptedData")
	if err != nil {
		return nil, err
	}
	inner, err := picocrypto.Decrypt(sharedKey, iv, ciphertext)
	if err != nil {
		return nil, &Error{Message: "decode service reauth: " + err.Error()}
	}
	fixedLen := 1 + 4 + seqno.Size
	if len(inner) < fixedLen {
		return nil, &Error{Message: "decode service reauth: payload too short"}
	}
	state := ReauthState(int8(inner[0]))
	timeout := binary.BigEndian.Uint32(inner[1:5])
	seq, err := seqno.FromBytes(inner[5:fixedLen])
	if err != nil {
		return nil, &Error{Message: "decode service reauth: " + err.Error()}
	}
	result := &ServiceReAuth{State: state, Timeout: timeout, SeqNo: seq}
	if len(inner) > fixedLen {
		extraData, _, err := buffer.ReadLengthPrefixed(inner, fixedLen)
		if err != nil {
			return nil, &Error{Message: "decode service reauth: " + err.Error()}
		}
		result.ExtraData = extraData
	}
	return result, nil
}
