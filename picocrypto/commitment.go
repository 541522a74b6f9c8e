package picocrypto

import "encoding/base64"

// Commitment computes SHA-256(DER(pub)), the short stable identifier
// used throughout the user store and the KeyAuth QR payload.
func Commitment(pub *PublicKey) ([]byte, error) {
	der, err := pub.MarshalDER()
	if err != nil {
		return nil, err
	}
	return SHA256(der), nil
}

// CommitmentBase64 is the standard base-64 form of Commitment.
func CommitmentBase64(pub *PublicKey) (string, error) {
	sum, err := Commitment(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}
