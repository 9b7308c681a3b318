package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), SecretKeyFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return path
}

func TestReadPassphrase_Valid(t *testing.T) {
	// 43 base64 characters on the first line, more material after.
	first := strings.Repeat("A", 43)
	path := writeSecret(t, first+"\n"+strings.Repeat("B", 64)+"\n")
	got, err := ReadPassphrase(path)
	if err != nil {
		t.Fatalf("ReadPassphrase: %v", err)
	}
	if got != first {
		t.Fatalf("passphrase = %q, want first line only", got)
	}
}

func TestReadPassphrase_TrimsWhitespace(t *testing.T) {
	first := strings.Repeat("x", 50)
	path := writeSecret(t, first+"   \n")
	got, err := ReadPassphrase(path)
	if err != nil {
		t.Fatalf("ReadPassphrase: %v", err)
	}
	if got != first {
		t.Fatalf("passphrase = %q, trailing whitespace not stripped", got)
	}
}

func TestReadPassphrase_TooShort(t *testing.T) {
	path := writeSecret(t, strings.Repeat("a", 20)+"\n")
	if _, err := ReadPassphrase(path); !errors.Is(err, ErrPassphraseTooShort) {
		t.Fatalf("err = %v, want ErrPassphraseTooShort", err)
	}
}

func TestReadPassphrase_EmptyFile(t *testing.T) {
	path := writeSecret(t, "")
	if _, err := ReadPassphrase(path); !errors.Is(err, ErrPassphraseTooShort) {
		t.Fatalf("err = %v, want ErrPassphraseTooShort", err)
	}
}

func TestReadPassphrase_MissingFile(t *testing.T) {
	if _, err := ReadPassphrase(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
