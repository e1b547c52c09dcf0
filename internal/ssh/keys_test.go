package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestLoadSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	dir := t.TempDir()

	plain, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	plainPath := filepath.Join(dir, "id_plain")
	if err := os.WriteFile(plainPath, pem.EncodeToMemory(plain), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	if _, err := LoadSigner(plainPath, ""); err != nil {
		t.Fatalf("expected plain key to load: %v", err)
	}

	encrypted, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	if err != nil {
		t.Fatalf("failed to marshal encrypted key: %v", err)
	}
	encPath := filepath.Join(dir, "id_enc")
	if err := os.WriteFile(encPath, pem.EncodeToMemory(encrypted), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	if _, err := LoadSigner(encPath, "hunter2"); err != nil {
		t.Fatalf("expected encrypted key to load: %v", err)
	}
	if _, err := LoadSigner(encPath, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
	if _, err := LoadSigner(filepath.Join(dir, "missing"), ""); err == nil {
		t.Fatalf("expected missing key file to fail")
	}
}
