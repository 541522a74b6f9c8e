package picocrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"math/big"
)

// KeyError is the typed error category for key parse/encode failures.
type KeyError struct {
	Message string
}

func (e *KeyError) Error() string { return e.Message }

// KeyPair is an ECDH+ECDSA key pair over the build's active named curve
// (P-256 by default, P-192 behind the p192 build tag). The same curve
// point serves both roles: ephemeral key pairs use it for ECDH,
// identity key pairs use it for ECDSA signatures, per spec §3/§4.3.
type KeyPair struct {
	Private *ecdsa.PrivateKey
}

// PublicKey is the public half of a KeyPair, usable on its own when only
// the peer's public half is known (e.g. the verifier holds only the
// pico identity public key).
type PublicKey struct {
	Point *ecdsa.PublicKey
}

// ActiveCurveName returns the named curve this build is compiled
// against ("P-256" or "P-192"), for config validation at startup.
func ActiveCurveName() string {
	return activeCurve().Params().Name
}

// GenerateKeyPair generates a fresh key pair on the active curve. Spec
// invariant: ephemeral keys must be freshly generated per protocol run.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(activeCurve(), rand.Reader)
	if err != nil {
		return nil, &KeyError{Message: "generate key pair: " + err.Error()}
	}
	return &KeyPair{Private: priv}, nil
}

// Public returns the public half of kp.
func (kp *KeyPair) Public() *PublicKey {
	return &PublicKey{Point: &kp.Private.PublicKey}
}

// pkixAlgorithmIdentifier and pkixPublicKeyInfo/ecPrivateKey/pkcs8Info
// implement exactly the ASN.1 shapes SubjectPublicKeyInfo/PKCS#8 need,
// defined locally (rather than via crypto/x509's named-curve table)
// because that table only recognizes P-224/256/384/521 and would reject
// the P-192 build.
type pkixAlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

type pkixPublicKeyInfo struct {
	Algorithm pkixAlgorithmIdentifier
	PublicKey asn1.BitString
}

type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type pkcs8Info struct {
	Version    int
	Algo       pkixAlgorithmIdentifier
	PrivateKey []byte
}

func marshalUncompressedPoint(curve elliptic.Curve, x, y *big.Int) []byte {
	return elliptic.Marshal(curve, x, y)
}

// MarshalDER encodes the public key as an uncompressed-point DER
// SubjectPublicKeyInfo, the on-wire encoding spec §3 requires.
func (pk *PublicKey) MarshalDER() ([]byte, error) {
	point := marshalUncompressedPoint(activeCurve(), pk.Point.X, pk.Point.Y)
	info := pkixPublicKeyInfo{
		Algorithm: pkixAlgorithmIdentifier{
			Algorithm:  oidPublicKeyEC,
			Parameters: activeCurveOID,
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	}
	der, err := asn1.Marshal(info)
	if err != nil {
		return nil, &KeyError{Message: "marshal public key: " + err.Error()}
	}
	return der, nil
}

// ParsePublicKeyDER decodes an uncompressed-point DER SubjectPublicKeyInfo.
func ParsePublicKeyDER(der []byte) (*PublicKey, error) {
	var info pkixPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, &KeyError{Message: "parse public key: " + err.Error()}
	}
	curve := activeCurve()
	x, y := elliptic.Unmarshal(curve, info.PublicKey.RightAlign())
	if x == nil {
		return nil, &KeyError{Message: "parse public key: invalid curve point"}
	}
	return &PublicKey{Point: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}

// MarshalPublicKeyBase64 is the standard base-64 of MarshalDER, the form
// carried in JSON message fields.
func (pk *PublicKey) MarshalPublicKeyBase64() (string, error) {
	der, err := pk.MarshalDER()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKeyBase64 parses a base-64 DER SubjectPublicKeyInfo string.
func ParsePublicKeyBase64(s string) (*PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &KeyError{Message: "decode public key base64: " + err.Error()}
	}
	return ParsePublicKeyDER(der)
}

// MarshalPrivateDER encodes the private key as a DER PKCS#8
// PrivateKeyInfo, the on-disk encoding spec §3 requires.
func (kp *KeyPair) MarshalPrivateDER() ([]byte, error) {
	curve := activeCurve()
	point := marshalUncompressedPoint(curve, kp.Private.X, kp.Private.Y)
	byteLen := (curve.Params().BitSize + 7) / 8
	d := kp.Private.D.Bytes()
	padded := make([]byte, byteLen)
	copy(padded[byteLen-len(d):], d)

	inner := ecPrivateKey{
		Version:    1,
		PrivateKey: padded,
		PublicKey:  asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	}
	innerDER, err := asn1.Marshal(inner)
	if err != nil {
		return nil, &KeyError{Message: "marshal private key: " + err.Error()}
	}
	outer := pkcs8Info{
		Version: 0,
		Algo: pkixAlgorithmIdentifier{
			Algorithm:  oidPublicKeyEC,
			Parameters: activeCurveOID,
		},
		PrivateKey: innerDER,
	}
	der, err := asn1.Marshal(outer)
	if err != nil {
		return nil, &KeyError{Message: "marshal private key: " + err.Error()}
	}
	return der, nil
}

// ParsePrivateKeyDER decodes a DER PKCS#8 PrivateKeyInfo.
func ParsePrivateKeyDER(der []byte) (*KeyPair, error) {
	var outer pkcs8Info
	if _, err := asn1.Unmarshal(der, &outer); err != nil {
		return nil, &KeyError{Message: "parse private key: " + err.Error()}
	}
	var inner ecPrivateKey
	if _, err := asn1.Unmarshal(outer.PrivateKey, &inner); err != nil {
		return nil, &KeyError{Message: "parse private key: " + err.Error()}
	}
	curve := activeCurve()
	d := new(big.Int).SetBytes(inner.PrivateKey)
	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	if len(inner.PublicKey.Bytes) > 0 {
		x, y := elliptic.Unmarshal(curve, inner.PublicKey.RightAlign())
		if x == nil {
			return nil, &KeyError{Message: "parse private key: invalid embedded public point"}
		}
		priv.X, priv.Y = x, y
	} else {
		priv.X, priv.Y = curve.ScalarBaseMult(d.Bytes())
	}
	return &KeyPair{Private: priv}, nil
}

const pemPrivateKeyType = "PRIVATE KEY"

// MarshalPrivatePEM wraps the PKCS#8 DER in a PEM block.
func (kp *KeyPair) MarshalPrivatePEM() ([]byte, error) {
	der, err := kp.MarshalPrivateDER()
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PEM-wrapped PKCS#8 private key.
func ParsePrivateKeyPEM(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &KeyError{Message: "parse private key: no PEM block found"}
	}
	return ParsePrivateKeyDER(block.Bytes)
}
