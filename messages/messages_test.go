package messages

import (
	"bytes"
	"testing"

	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/seqno"
)

func mustKeyPair(t *testing.T) *picocrypto.KeyPair {
	t.Helper()
	kp, err := picocrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return kp
}

func reencode(t *testing.T, o *jsonvalue.Object) *jsonvalue.Object {
	t.Helper()
	reparsed, err := jsonvalue.Parse(o.Serialize())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	return reparsed
}

func TestStartRoundTrip(t *testing.T) {
	kp := mustKeyPair(t)
	start := &Start{PicoVersion: 2, PicoEphemeralPublicKey: kp.Public(), PicoNonce: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	o, err := EncodeStart(start)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeStart(reencode(t, o))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PicoVersion != 2 || !bytes.Equal(got.PicoNonce, start.PicoNonce) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestServiceAuthRoundTrip(t *testing.T) {
	serviceIdentity := mustKeyPair(t)
	serviceEphem := mustKeyPair(t)
	picoEphem := mustKeyPair(t)
	picoNonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	serviceNonce := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	vMacKey := bytes.Repeat([]byte{0xAA}, 32)
	vEncKey := bytes.Repeat([]byte{0xBB}, 16)

	msg := &ServiceAuth{ServiceEphemPublicKey: serviceEphem.Public(), ServiceNonce: serviceNonce, SessionID: 42}
	o, err := EncodeServiceAuth(msg, picoNonce, picoEphem.Public(), serviceIdentity, vMacKey, vEncKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeServiceAuth(reencode(t, o), picoNonce, picoEphem.Public(), vMacKey, vEncKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SessionID != 42 {
		t.Fatalf("session id mismatch: %d", decoded.SessionID)
	}
	if !bytes.Equal(decoded.ServiceNonce, serviceNonce) {
		t.Fatalf("nonce mismatch")
	}
	wantDER, _ := serviceIdentity.Public().MarshalDER()
	gotDER, _ := decoded.ServiceIdentityPub.MarshalDER()
	if !bytes.Equal(wantDER, gotDER) {
		t.Fatalf("identity pub mismatch")
	}
}

func TestServiceAuthRejectsTamperedMAC(t *testing.T) {
	serviceIdentity := mustKeyPair(t)
	serviceEphem := mustKeyPair(t)
	picoEphem := mustKeyPair(t)
	picoNonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	vMacKey := bytes.Repeat([]byte{0xAA}, 32)
	vEncKey := bytes.Repeat([]byte{0xBB}, 16)

	msg := &ServiceAuth{ServiceEphemPublicKey: serviceEphem.Public(), ServiceNonce: []byte{1, 1, 1, 1, 1, 1, 1, 1}, SessionID: 1}
	o, err := EncodeServiceAuth(msg, picoNonce, picoEphem.Public(), serviceIdentity, vMacKey, vEncKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	wrongMacKey := bytes.Repeat([]byte{0xCC}, 32)
	if _, err := DecodeServiceAuth(reencode(t, o), picoNonce, picoEphem.Public(), wrongMacKey, vEncKey); err == nil {
		t.Fatalf("expected mac verification to fail with wrong key")
	}
}

func TestPicoAuthRoundTrip(t *testing.T) {
	picoIdentity := mustKeyPair(t)
	picoEphem := mustKeyPair(t)
	serviceNonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pMacKey := bytes.Repeat([]byte{0x11}, 32)
	pEncKey := bytes.Repeat([]byte{0x22}, 16)

	msg := &PicoAuth{SessionID: 7, ExtraData: []byte("extra")}
	o, err := EncodePicoAuth(msg, serviceNonce, picoEphem.Public(), picoIdentity, pMacKey, pEncKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePicoAuth(reencode(t, o), serviceNonce, picoEphem.Public(), pMacKey, pEncKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SessionID != 7 || string(decoded.ExtraData) != "extra" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	wantDER, _ := picoIdentity.Public().MarshalDER()
	gotDER, _ := decoded.PicoIdentityPub.MarshalDER()
	if !bytes.Equal(wantDER, gotDER) {
		t.Fatalf("identity pub mismatch")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	vEncKey := bytes.Repeat([]byte{0x33}, 16)
	msg := &Status{SessionID: 5, Code: StatusOKContinue, ExtraData: []byte("hello")}
	o, err := EncodeStatus(msg, vEncKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeStatus(reencode(t, o), vEncKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Code != StatusOKContinue || string(decoded.ExtraData) != "hello" || !decoded.Code.Valid() {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestPicoReAuthRoundTrip(t *testing.T) {
	sharedKey := bytes.Repeat([]byte{0x44}, 16)
	seq, err := seqno.Random()
	if err != nil {
		t.Fatalf("seqno: %v", err)
	}
	msg := &PicoReAuth{State: ReauthContinue, SeqNo: seq, ExtraData: []byte("ping")}
	o, err := EncodePicoReAuth(msg, sharedKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePicoReAuth(reencode(t, o), sharedKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.State != ReauthContinue || !decoded.SeqNo.Equal(seq) || string(decoded.ExtraData) != "ping" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestServiceReAuthRoundTrip(t *testing.T) {
	sharedKey := bytes.Repeat([]byte{0x55}, 16)
	seq, err := seqno.Random()
	if err != nil {
		t.Fatalf("seqno: %v", err)
	}
	msg := &ServiceReAuth{State: ReauthPause, Timeout: 5000, SeqNo: seq, ExtraData: []byte("pong")}
	o, err := EncodeServiceReAuth(msg, sharedKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeServiceReAuth(reencode(t, o), sharedKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.State != ReauthPause || decoded.Timeout != 5000 || !decoded.SeqNo.Equal(seq) || string(decoded.ExtraData) != "pong" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

// TestServiceReAuthToleratesMissingExtraData is the §9 Open Question:
// the codec must accept messages lacking the trailing extra-data
// block entirely.
func TestServiceReAuthToleratesMissingExtraData(t *testing.T) {
	sharedKey := bytes.Repeat([]byte{0x66}, 16)
	seq, err := seqno.Random()
	if err != nil {
		t.Fatalf("seqno: %v", err)
	}

	// Build the fixed-width portion only, bypassing EncodeServiceReAuth
	// (which always emits the extra-data block) to simulate a legacy
	// peer's message.
	inner := append([]byte{byte(ReauthStop)}, 0, 0, 0x13, 0x88)
	inner = append(inner, seq.Bytes()...)
	iv, err := picocrypto.GenerateIV()
	if err != nil {
		t.Fatalf("iv: %v", err)
	}
	ciphertext, err := picocrypto.Encrypt(sharedKey, iv, inner)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	o := jsonvalue.New()
	o.SetString("iv", b64(iv))
	o.SetString("encryptedData", b64(ciphertext))

	decoded, err := DecodeServiceReAuth(reencode(t, o), sharedKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.State != ReauthStop || decoded.ExtraData != nil {
		t.Fatalf("expected nil extra data for legacy message, got %+v", decoded)
	}
}
