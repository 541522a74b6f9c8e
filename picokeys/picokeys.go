// Package picokeys implements the on-disk service identity key pair
// (§6 "Service keys"): two files side by side, a DER PKCS#8 private
// key and a DER SubjectPublicKeyInfo public key. Grounded on the
// teacher's os.ReadFile/os.WriteFile credentials persistence
// (internal/core/connection.go's loadCredentials/saveCredentials),
// the same style users.Load/Save already follows for the user store.
package picokeys

import (
	"os"

	"github.com/vertexhub/libpico/picocrypto"
)

// Error is the typed error category for key-file failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

const filePerm = 0o600

// LoadOrGenerate reads the key pair from privatePath/publicPath. If
// either file is missing, a fresh pair is generated and both files are
// written (§6).
func LoadOrGenerate(privatePath, publicPath string) (*picocrypto.KeyPair, error) {
	privDER, privErr := os.ReadFile(privatePath)
	_, pubErr := os.ReadFile(publicPath)

	if privErr == nil && pubErr == nil {
		kp, err := picocrypto.ParsePrivateKeyDER(privDER)
		if err != nil {
			return nil, &Error{Message: "picokeys: " + err.Error()}
		}
		return kp, nil
	}

	kp, err := picocrypto.GenerateKeyPair()
	if err != nil {
		return nil, &Error{Message: "picokeys: " + err.Error()}
	}
	if err := save(kp, privatePath, publicPath); err != nil {
		return nil, err
	}
	return kp, nil
}

func save(kp *picocrypto.KeyPair, privatePath, publicPath string) error {
	privDER, err := kp.MarshalPrivateDER()
	if err != nil {
		return &Error{Message: "picokeys: " + err.Error()}
	}
	pubDER, err := kp.Public().MarshalDER()
	if err != nil {
		return &Error{Message: "picokeys: " + err.Error()}
	}
	if err := os.WriteFile(privatePath, privDER, filePerm); err != nil {
		return &Error{Message: "picokeys: " + err.Error()}
	}
	if err := os.WriteFile(publicPath, pubDER, filePerm); err != nil {
		return &Error{Message: "picokeys: " + err.Error()}
	}
	return nil
}
