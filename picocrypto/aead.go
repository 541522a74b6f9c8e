package picocrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// AEADError is the typed error category for symmetric crypto failures
// (decryption/MAC failure, bad key length, ...).
type AEADError struct {
	Message string
}

func (e *AEADError) Error() string { return e.Message }

const (
	// SymmetricKeyLen128 is the 16-byte AES-128 key length most of the
	// derived keys use (pEncKey, vEncKey, sharedKey).
	SymmetricKeyLen128 = 16
	// SymmetricKeyLen256 is the 32-byte length the MAC keys use
	// (pMacKey, vMacKey).
	SymmetricKeyLen256 = 32
	ivLen               = 16
)

// GenerateSymmetricKey returns length bytes of cryptographic randomness,
// for use as an AES key. length must be 16 or 32.
func GenerateSymmetricKey(length int) ([]byte, error) {
	if length != SymmetricKeyLen128 && length != SymmetricKeyLen256 {
		return nil, &AEADError{Message: "generate symmetric key: length must be 16 or 32"}
	}
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, &AEADError{Message: "generate symmetric key: " + err.Error()}
	}
	return key, nil
}

// GenerateIV returns 16 random bytes for use as an AES-GCM IV. Per §9,
// every encrypt call — including every reauth round — must use a fresh
// IV; callers must never reuse one across messages under the same key.
func GenerateIV() ([]byte, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, &AEADError{Message: "generate iv: " + err.Error()}
	}
	return iv, nil
}

func gcmFor(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &AEADError{Message: "aes cipher: " + err.Error()}
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, &AEADError{Message: "gcm init: " + err.Error()}
	}
	return gcm, nil
}

// Encrypt returns AES-128-GCM ciphertext concatenated with its 16-byte
// authentication tag.
func Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt reverses Encrypt. It fails closed: on tag verification
// failure, no partial plaintext is ever returned.
func Decrypt(key, iv, input []byte) ([]byte, error) {
	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, iv, input, nil)
	if err != nil {
		return nil, &AEADError{Message: "decrypt: authentication failed"}
	}
	return plaintext, nil
}

// EncryptIVBase64 encrypts plaintext under a freshly generated IV and
// returns "<base64 iv>:<base64 ciphertext>".
func EncryptIVBase64(key, plaintext []byte) (string, error) {
	iv, err := GenerateIV()
	if err != nil {
		return "", err
	}
	ciphertext, err := Encrypt(key, iv, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptIVBase64 is the inverse of EncryptIVBase64. It splits at the
// first colon, per spec.
func DecryptIVBase64(key []byte, combined string) ([]byte, error) {
	idx := strings.IndexByte(combined, ':')
	if idx < 0 {
		return nil, &AEADError{Message: "decrypt: missing iv separator"}
	}
	ivPart, ctPart := combined[:idx], combined[idx+1:]
	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil {
		return nil, &AEADError{Message: "decrypt: bad iv base64: " + err.Error()}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ctPart)
	if err != nil {
		return nil, &AEADError{Message: "decrypt: bad ciphertext base64: " + err.Error()}
	}
	return Decrypt(key, iv, ciphertext)
}

// GenerateMAC computes HMAC-SHA-256(key, data).
func GenerateMAC(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyMAC reports whether mac is the valid HMAC-SHA-256(key, data) in
// constant time.
func VerifyMAC(key, data, mac []byte) bool {
	return hmac.Equal(GenerateMAC(key, data), mac)
}

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
