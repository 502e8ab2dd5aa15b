package tunnel

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Fingerprint computes the SHA-256 fingerprint of the tunnel server host key,
// as bound into every edge key. The input is the public key in authorized_keys
// format.
func Fingerprint(publicKey []byte) (string, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("parse tunnel server public key: %w", err)
	}
	return ssh.FingerprintSHA256(key), nil
}
