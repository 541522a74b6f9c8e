//go:build p192

package picocrypto

import (
	"crypto/elliptic"
	"encoding/asn1"
	"math/big"
	"sync"
)

// NIST P-192 is not one of the curves crypto/elliptic curates (nor does
// crypto/ecdh offer it) and no example in the reference corpus defines
// one either; this is the generic-Weierstrass-curve escape hatch Go
// itself used before crypto/ecdh's curated list existed. Parameters are
// the FIPS 186-4 constants for secp192r1.
var (
	p192Once   sync.Once
	p192Curve  *elliptic.CurveParams
)

func initP192() {
	p192Curve = &elliptic.CurveParams{Name: "P-192"}
	p192Curve.P, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffeffffffffffffffff", 16)
	p192Curve.N, _ = new(big.Int).SetString("ffffffffffffffffffffffff99def836146bc9b1b4d22831", 16)
	p192Curve.B, _ = new(big.Int).SetString("64210519e59c80e70fa7e9ab72243049feb8deecc146b9b1", 16)
	p192Curve.Gx, _ = new(big.Int).SetString("188da80eb03090f67cbf20eb43a18800f4ff0afd82ff1012", 16)
	p192Curve.Gy, _ = new(big.Int).SetString("07192b95ffc8da78631011ed6b24cdd573f977a11e794811", 16)
	p192Curve.BitSize = 192
}

func activeCurve() elliptic.Curve {
	p192Once.Do(initP192)
	return p192Curve
}

var oidPublicKeyEC = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// secp192r1 / prime192v1, 1.2.840.10045.3.1.1
var activeCurveOID = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 1}
