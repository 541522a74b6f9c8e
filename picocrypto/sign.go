package picocrypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
)

// SignatureError is the typed error category for signature failures.
type SignatureError struct {
	Message string
}

func (e *SignatureError) Error() string { return e.Message }

// Sign produces an ECDSA signature over SHA-256(data), ASN.1 DER
// encoded (the form crypto/ecdsa.SignASN1 already returns).
func Sign(priv *KeyPair, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, priv.Private, digest[:])
	if err != nil {
		return nil, &SignatureError{Message: "sign: " + err.Error()}
	}
	return sig, nil
}

// Verify reports whether sig is a valid ECDSA signature over
// SHA-256(data) under pub.
func Verify(pub *PublicKey, data, sig []byte) bool {
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub.Point, digest[:], sig)
}
