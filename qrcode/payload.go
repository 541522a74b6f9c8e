// Package qrcode builds and verifies the KeyAuth/KeyPairing JSON
// payloads displayed to the user at session bootstrap (§6), and
// renders them as scannable images.
//
// Grounded on the teacher's QRGenerator (internal/core/qrcode.go) for
// the optional PNG/SVG rendering convenience; the payload shape itself
// has no teacher analogue and is built directly from the jsonvalue and
// picocrypto packages already used by the messages codecs.
package qrcode

import (
	"encoding/base64"

	"github.com/vertexhub/libpico/buffer"
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/picocrypto"
)

// Error is the typed error category for payload construction and
// verification failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func base64StdDecode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &Error{Message: "bad base64: " + err.Error()}
	}
	return b, nil
}

// KeyAuth is a "t":"KA" bootstrap payload: a returning-user
// reconnection to a service whose identity the pico already trusts via
// its commitment.
type KeyAuth struct {
	ServiceAddress     string
	ServiceIdentityPub *picocrypto.PublicKey
	ExtraDisplayData   string
	TerminalData       *jsonvalue.Object
}

// Encode serializes a KeyAuth payload. There is no signature: the
// commitment (sc) is what the pico checks, and the service identity
// public key is not yet trusted at this point in the exchange.
func (k *KeyAuth) Encode() (*jsonvalue.Object, error) {
	spkDER, err := k.ServiceIdentityPub.MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode key auth: " + err.Error()}
	}
	commitment, err := picocrypto.Commitment(k.ServiceIdentityPub)
	if err != nil {
		return nil, &Error{Message: "encode key auth: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetString("t", "KA")
	o.SetString("sa", k.ServiceAddress)
	o.SetString("spk", b64(spkDER))
	o.SetString("sig", "")
	o.SetString("ed", k.ExtraDisplayData)
	o.SetObject("td", terminalDataOrEmpty(k.TerminalData))
	o.SetString("sc", b64(commitment))
	return o, nil
}

// KeyPairing is a "t":"KP" bootstrap payload: a first-time pairing,
// authenticated by the service identity's signature rather than a
// pre-shared commitment.
type KeyPairing struct {
	ServiceAddress     string
	ServiceIdentityPub *picocrypto.PublicKey
	ServiceName        string
	ExtraDisplayData   string
	TerminalData       *jsonvalue.Object
}

// sigInput builds the canonical concatenation the KP signature covers:
// td.serialize() ‖ ed ‖ sa ‖ sn ‖ serviceIdentityPublicKey-DER.
// Absent fields contribute empty strings (§6).
func sigInput(td *jsonvalue.Object, ed, sa, sn string, spkDER []byte) []byte {
	b := buffer.New(256)
	b.AppendString(terminalDataOrEmpty(td).Serialize())
	b.AppendString(ed)
	b.AppendString(sa)
	b.AppendString(sn)
	b.Append(spkDER)
	return b.Bytes()
}

func terminalDataOrEmpty(td *jsonvalue.Object) *jsonvalue.Object {
	if td == nil {
		return jsonvalue.New()
	}
	return td
}

// Encode signs and serializes a KeyPairing payload using the service's
// own identity key pair.
func (k *KeyPairing) Encode(serviceIdentity *picocrypto.KeyPair) (*jsonvalue.Object, error) {
	spkDER, err := serviceIdentity.Public().MarshalDER()
	if err != nil {
		return nil, &Error{Message: "encode key pairing: " + err.Error()}
	}
	sig, err := picocrypto.Sign(serviceIdentity, sigInput(k.TerminalData, k.ExtraDisplayData, k.ServiceAddress, k.ServiceName, spkDER))
	if err != nil {
		return nil, &Error{Message: "encode key pairing: " + err.Error()}
	}

	o := jsonvalue.New()
	o.SetString("t", "KP")
	o.SetString("sa", k.ServiceAddress)
	o.SetString("spk", b64(spkDER))
	o.SetString("sn", k.ServiceName)
	o.SetString("sig", b64(sig))
	o.SetString("ed", k.ExtraDisplayData)
	o.SetObject("td", terminalDataOrEmpty(k.TerminalData))
	return o, nil
}

// DecodedKeyPairing is a parsed and signature-verified KP payload.
type DecodedKeyPairing struct {
	ServiceAddress     string
	ServiceIdentityPub *picocrypto.PublicKey
	ServiceName        string
	ExtraDisplayData   string
	TerminalData       *jsonvalue.Object
}

// DecodeKeyPairing parses a "t":"KP" payload and verifies its
// signature against the embedded service identity public key.
func DecodeKeyPairing(o *jsonvalue.Object) (*DecodedKeyPairing, error) {
	t, ok := o.GetString("t")
	if !ok || t != "KP" {
		return nil, &Error{Message: "key pairing: wrong or missing t field"}
	}
	sa, _ := o.GetString("sa")
	spkB64, ok := o.GetString("spk")
	if !ok {
		return nil, &Error{Message: "key pairing: missing spk"}
	}
	spkDER, err := base64StdDecode(spkB64)
	if err != nil {
		return nil, &Error{Message: "key pairing: " + err.Error()}
	}
	spk, err := picocrypto.ParsePublicKeyDER(spkDER)
	if err != nil {
		return nil, &Error{Message: "key pairing: " + err.Error()}
	}
	sn, _ := o.GetString("sn")
	ed, _ := o.GetString("ed")
	sigB64, ok := o.GetString("sig")
	if !ok {
		return nil, &Error{Message: "key pairing: missing sig"}
	}
	sig, err := base64StdDecode(sigB64)
	if err != nil {
		return nil, &Error{Message: "key pairing: " + err.Error()}
	}
	td, _ := o.GetObject("td")

	if !picocrypto.Verify(spk, sigInput(td, ed, sa, sn, spkDER), sig) {
		return nil, &Error{Message: "key pairing: signature verification failed"}
	}

	return &DecodedKeyPairing{
		ServiceAddress:     sa,
		ServiceIdentityPub: spk,
		ServiceName:        sn,
		ExtraDisplayData:   ed,
		TerminalData:       terminalDataOrEmpty(td),
	}, nil
}

// DecodedKeyAuth is a parsed KA payload; the caller is responsible for
// checking sc against its own record of the service's commitment.
type DecodedKeyAuth struct {
	ServiceAddress     string
	ServiceIdentityPub *picocrypto.PublicKey
	ExtraDisplayData   string
	TerminalData       *jsonvalue.Object
	Commitment         []byte
}

// DecodeKeyAuth parses a "t":"KA" payload without verifying the
// commitment; callers compare Commitment against their own trusted
// value.
func DecodeKeyAuth(o *jsonvalue.Object) (*DecodedKeyAuth, error) {
	t, ok := o.GetString("t")
	if !ok || t != "KA" {
		return nil, &Error{Message: "key auth: wrong or missing t field"}
	}
	sa, _ := o.GetString("sa")
	spkB64, ok := o.GetString("spk")
	if !ok {
		return nil, &Error{Message: "key auth: missing spk"}
	}
	spkDER, err := base64StdDecode(spkB64)
	if err != nil {
		return nil, &Error{Message: "key auth: " + err.Error()}
	}
	spk, err := picocrypto.ParsePublicKeyDER(spkDER)
	if err != nil {
		return nil, &Error{Message: "key auth: " + err.Error()}
	}
	ed, _ := o.GetString("ed")
	td, _ := o.GetObject("td")
	scB64, ok := o.GetString("sc")
	if !ok {
		return nil, &Error{Message: "key auth: missing sc"}
	}
	sc, err := base64StdDecode(scB64)
	if err != nil {
		return nil, &Error{Message: "key auth: " + err.Error()}
	}

	return &DecodedKeyAuth{
		ServiceAddress:     sa,
		ServiceIdentityPub: spk,
		ExtraDisplayData:   ed,
		TerminalData:       terminalDataOrEmpty(td),
		Commitment:         sc,
	}, nil
}
