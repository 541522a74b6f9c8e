package picocrypto

// ECDH computes the shared secret X-coordinate between our private key
// and the peer's public key, the one ECDH operation the key-derivation
// step (kdf package) consumes as S.
func ECDH(ours *KeyPair, theirs *PublicKey) []byte {
	curve := activeCurve()
	x, _ := curve.ScalarMult(theirs.Point.X, theirs.Point.Y, ours.Private.D.Bytes())
	byteLen := (curve.Params().BitSize + 7) / 8
	secret := make([]byte, byteLen)
	xb := x.Bytes()
	copy(secret[byteLen-len(xb):], xb)
	return secret
}
