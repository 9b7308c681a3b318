package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretKeyFile is the name of the passphrase file under the backup root.
// It holds random bits base64-encoded with line breaks; the encryption layer
// only reads the first line, so that line alone must carry the key material.
const SecretKeyFile = "secret_key.txt"

// minPassphraseLen is the shortest acceptable first line: 43 base64
// characters decode to the 32 bytes of an AES256 key.
const minPassphraseLen = 43

// ErrPassphraseTooShort indicates the secret file's first line cannot hold
// enough entropy to be a usable encryption passphrase.
var ErrPassphraseTooShort = errors.New("secret key file's first line is too short")

// File returns the passphrase file path for a backup root.
func File(backupRoot string) string {
	return filepath.Join(backupRoot, SecretKeyFile)
}

// ReadPassphrase reads and validates the encryption passphrase. The returned
// value must never be logged or placed on a command line; it is held only for
// the duration of a single snapshot-tool invocation's environment.
func ReadPassphrase(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open secret key: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read secret key: %w", err)
		}
		return "", ErrPassphraseTooShort
	}
	passphrase := strings.TrimSpace(scanner.Text())
	if len(passphrase) < minPassphraseLen {
		return "", ErrPassphraseTooShort
	}
	return passphrase, nil
}
