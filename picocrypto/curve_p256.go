//go:build !p192

// Package picocrypto wraps the fixed algorithm choices the SIGMA-I core
// treats as external library calls (§1): ECDH key agreement, ECDSA
// signatures, AES-128-GCM, HMAC-SHA-256 and SHA-256. This file selects
// NIST P-256 as the active named curve, the spec's default.
package picocrypto

import (
	"crypto/elliptic"
	"encoding/asn1"
)

// activeCurve returns the named curve this build is compiled against.
func activeCurve() elliptic.Curve {
	return elliptic.P256()
}

// id-ecPublicKey, 1.2.840.10045.2.1
var oidPublicKeyEC = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// prime256v1 / secp256r1, 1.2.840.10045.3.1.7
var activeCurveOID = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
